package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shynlabs/shyn/internal/types"
)

type fakeMemoryRepo struct {
	mu       sync.Mutex
	memories map[int][]types.Memory
	failRead bool
}

func newFakeMemoryRepo() *fakeMemoryRepo {
	return &fakeMemoryRepo{memories: make(map[int][]types.Memory)}
}

func (r *fakeMemoryRepo) ForUser(ctx context.Context, userID int) ([]types.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRead {
		return nil, errors.New("read failed")
	}
	out := make([]types.Memory, len(r.memories[userID]))
	copy(out, r.memories[userID])
	return out, nil
}

func (r *fakeMemoryRepo) Insert(ctx context.Context, userID int, mem types.Memory, _ []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memories[userID] = append(r.memories[userID], mem)
	return nil
}

func (r *fakeMemoryRepo) SearchSimilar(ctx context.Context, userID int, embedding []float32, topK int) ([]types.Memory, error) {
	return nil, nil
}

func newTestService(repo *fakeMemoryRepo) *Service {
	svc := NewService(repo, nil)
	counter := 0
	svc.newID = func() string {
		counter++
		return fmt.Sprintf("id-%d", counter)
	}
	return svc
}

func TestAppendDeduplicatesCaseInsensitively(t *testing.T) {
	repo := newFakeMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	svc.Append(ctx, 1, []types.MemoryCandidate{{Topic: "Pet", Detail: "Has a cat named Luna."}})
	svc.Append(ctx, 1, []types.MemoryCandidate{{Topic: "Pet", Detail: "HAS A CAT NAMED LUNA."}})

	got := svc.All(ctx, 1)
	if len(got) != 1 {
		t.Fatalf("expected exactly one memory, got %d", len(got))
	}
	if got[0].Detail != "Has a cat named Luna." {
		t.Fatalf("first detail must win: %q", got[0].Detail)
	}
}

func TestAppendDeduplicatesWithinOneBatch(t *testing.T) {
	repo := newFakeMemoryRepo()
	svc := newTestService(repo)

	svc.Append(context.Background(), 1, []types.MemoryCandidate{
		{Topic: "Pet", Detail: "Has a dog."},
		{Topic: "Animal", Detail: "has a DOG."},
	})
	if got := svc.All(context.Background(), 1); len(got) != 1 {
		t.Fatalf("expected one memory, got %d", len(got))
	}
}

func TestAppendAssignsFreshIDs(t *testing.T) {
	repo := newFakeMemoryRepo()
	svc := newTestService(repo)

	svc.Append(context.Background(), 1, []types.MemoryCandidate{
		{Topic: "A", Detail: "first"},
		{Topic: "B", Detail: "second"},
	})
	got := svc.All(context.Background(), 1)
	if len(got) != 2 || got[0].ID == got[1].ID || got[0].ID == "" {
		t.Fatalf("expected distinct fresh ids: %#v", got)
	}
}

func TestAllSwallowsReadErrors(t *testing.T) {
	repo := newFakeMemoryRepo()
	repo.failRead = true
	svc := newTestService(repo)

	if got := svc.All(context.Background(), 1); got != nil {
		t.Fatalf("expected nil on read failure, got %#v", got)
	}
}

func TestRecentOrderingAndTruncation(t *testing.T) {
	repo := newFakeMemoryRepo()
	svc := newTestService(repo)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		repo.memories[1] = append(repo.memories[1], types.Memory{
			ID:        fmt.Sprintf("m%d", i),
			Detail:    fmt.Sprintf("fact %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	got := svc.Recent(context.Background(), 1, 5)
	if len(got) != 5 {
		t.Fatalf("expected 5 memories, got %d", len(got))
	}
	if got[0].ID != "m6" || got[4].ID != "m2" {
		t.Fatalf("expected newest-first window m6..m2, got %s..%s", got[0].ID, got[4].ID)
	}
}

type stubExtractor struct {
	mu         sync.Mutex
	calls      []types.ConversationTurn
	candidates []types.MemoryCandidate
	delay      time.Duration
	done       chan struct{}
}

func (e *stubExtractor) ExtractMemories(ctx context.Context, turn types.ConversationTurn, userName string) []types.MemoryCandidate {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	e.calls = append(e.calls, turn)
	e.mu.Unlock()
	if e.done != nil {
		e.done <- struct{}{}
	}
	return e.candidates
}

func TestPipelineStoresExtractedCandidates(t *testing.T) {
	repo := newFakeMemoryRepo()
	svc := newTestService(repo)
	ext := &stubExtractor{
		candidates: []types.MemoryCandidate{{Topic: "Hobby", Detail: "Enjoys hiking."}},
		done:       make(chan struct{}, 1),
	}
	pipeline := NewPipeline(svc, ext)
	defer pipeline.Close()

	pipeline.Enqueue(1, "Alex", types.ConversationTurn{
		User: types.ChatMessage{Sender: types.SenderUser, Text: "I love hiking"},
		AI:   types.ChatMessage{Sender: types.SenderAI, Text: "That sounds wonderful!"},
	})

	select {
	case <-ext.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("extraction never ran")
	}
	pipeline.Close()

	if got := svc.All(context.Background(), 1); len(got) != 1 || got[0].Detail != "Enjoys hiking." {
		t.Fatalf("expected stored memory, got %#v", got)
	}
}

func TestPipelineSerializesPerUser(t *testing.T) {
	repo := newFakeMemoryRepo()
	svc := newTestService(repo)
	ext := &stubExtractor{delay: 20 * time.Millisecond, done: make(chan struct{}, 4)}
	pipeline := NewPipeline(svc, ext)

	turn := types.ConversationTurn{User: types.ChatMessage{Text: "hi"}}
	for i := 0; i < 3; i++ {
		pipeline.Enqueue(7, "Alex", turn)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-ext.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("extraction %d never completed", i)
		}
	}
	pipeline.Close()

	ext.mu.Lock()
	defer ext.mu.Unlock()
	if len(ext.calls) != 3 {
		t.Fatalf("expected 3 serialized extractions, got %d", len(ext.calls))
	}
}

func TestPipelineEnqueueDuringCloseDoesNotPanic(t *testing.T) {
	repo := newFakeMemoryRepo()
	svc := newTestService(repo)

	for i := 0; i < 50; i++ {
		pipeline := NewPipeline(svc, &stubExtractor{})
		turn := types.ConversationTurn{User: types.ChatMessage{Text: "hi"}}

		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(userID int) {
				defer wg.Done()
				<-start
				for j := 0; j < 20; j++ {
					pipeline.Enqueue(userID, "Alex", turn)
				}
			}(w)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			pipeline.Close()
		}()

		close(start)
		wg.Wait()
	}
}

func TestPipelineEnqueueAfterCloseIsNoop(t *testing.T) {
	repo := newFakeMemoryRepo()
	svc := newTestService(repo)
	ext := &stubExtractor{}
	pipeline := NewPipeline(svc, ext)
	pipeline.Close()

	// Must neither panic nor deadlock.
	pipeline.Enqueue(1, "Alex", types.ConversationTurn{})
}
