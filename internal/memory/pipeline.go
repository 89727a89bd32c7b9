package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shynlabs/shyn/internal/types"
)

// Extractor produces memory candidates from a completed conversation turn.
// Implementations never return an error; extraction is best-effort.
type Extractor interface {
	ExtractMemories(ctx context.Context, turn types.ConversationTurn, userName string) []types.MemoryCandidate
}

// pipelineQueueSize bounds the per-user backlog. A full queue drops the
// incoming turn rather than blocking it.
const pipelineQueueSize = 16

// pipelineJob is one queued extraction.
type pipelineJob struct {
	userID   int
	userName string
	turn     types.ConversationTurn
}

// Pipeline runs memory extraction as a detached background task queue,
// one worker per user so at most one extraction per user is in flight.
// Ordering relative to later turns is unconstrained.
type Pipeline struct {
	service   *Service
	extractor Extractor
	timeout   time.Duration

	mu      sync.Mutex
	queues  map[int]chan pipelineJob
	closed  bool
	workers sync.WaitGroup
}

// NewPipeline returns a pipeline over the given extractor and service.
func NewPipeline(service *Service, extractor Extractor) *Pipeline {
	return &Pipeline{
		service:   service,
		extractor: extractor,
		timeout:   time.Minute,
		queues:    make(map[int]chan pipelineJob),
	}
}

// Enqueue schedules extraction for a completed turn. It never blocks the
// caller: when the user's queue is full the job is dropped and logged.
// The send happens under the mutex so Close cannot close the queue
// between the closed check and the send.
func (p *Pipeline) Enqueue(userID int, userName string, turn types.ConversationTurn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	queue, ok := p.queues[userID]
	if !ok {
		queue = make(chan pipelineJob, pipelineQueueSize)
		p.queues[userID] = queue
		p.workers.Add(1)
		go p.work(queue)
	}

	select {
	case queue <- pipelineJob{userID: userID, userName: userName, turn: turn}:
	default:
		slog.Warn("memory extraction queue full, dropping turn", "user_id", userID)
	}
}

// Close stops accepting work and waits for in-flight extractions.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, queue := range p.queues {
		close(queue)
	}
	p.mu.Unlock()
	p.workers.Wait()
}

func (p *Pipeline) work(queue chan pipelineJob) {
	defer p.workers.Done()
	for job := range queue {
		p.process(job)
	}
}

func (p *Pipeline) process(job pipelineJob) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("memory extraction panicked", "user_id", job.userID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	candidates := p.extractor.ExtractMemories(ctx, job.turn, job.userName)
	if len(candidates) == 0 {
		return
	}
	p.service.Append(ctx, job.userID, candidates)
}
