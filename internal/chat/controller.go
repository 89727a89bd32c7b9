// Package chat owns the conversation session lifecycle: mood-scoped model
// sessions, the affection score and its idle decay, turn exchange with the
// model gateway, and handoff of completed turns to memory extraction.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shynlabs/shyn/internal/errs"
	"github.com/shynlabs/shyn/internal/gateway"
	"github.com/shynlabs/shyn/internal/storage"
	"github.com/shynlabs/shyn/internal/types"
)

// State is the controller lifecycle phase.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateSending       State = "sending"
	StateError         State = "error"
)

var (
	// ErrBusy means a turn or mood switch is already in flight.
	ErrBusy = errors.New("chat: a turn is already in flight")
	// ErrNoSession means the controller has no usable model session.
	ErrNoSession = errors.New("chat: no active session")
	// ErrEmptyMessage means the turn carried neither text nor attachment.
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrSuperseded means the turn's result arrived after a mood switch
	// and was discarded.
	ErrSuperseded = errors.New("chat: turn superseded by a session change")
)

const msgAttachmentTooLarge = "That file is a bit too big for me. Could you send something under 5MB?"

// replyDelay returns the randomized pause before a reply is shown.
func replyDelay() time.Duration {
	return 500*time.Millisecond + time.Duration(rand.Int64N(int64(time.Second)))
}

// ModelGateway is the slice of the gateway the controller drives.
type ModelGateway interface {
	CreateSession(ctx context.Context, user types.User, mood types.Mood, affection float64, messages []types.ChatMessage, memories []types.Memory) (*gateway.Session, string, error)
	SendTurn(ctx context.Context, session *gateway.Session, text string, attachment *types.Attachment) (gateway.Reply, error)
}

// MemoryReader loads memories for persona assembly.
type MemoryReader interface {
	Recent(ctx context.Context, userID int, limit int) []types.Memory
}

// MemorySink accepts completed turns for background extraction.
type MemorySink interface {
	Enqueue(userID int, userName string, turn types.ConversationTurn)
}

// Deps wires a controller. Notifier and Pipeline may be nil; Delay
// overrides the randomized reply pause when set.
type Deps struct {
	Gateway   ModelGateway
	History   storage.HistoryRepo
	Affection storage.AffectionRepo
	Memories  MemoryReader
	Pipeline  MemorySink
	Notifier  Notifier
	Delay     func() time.Duration
}

// TurnResult is the outcome of one completed turn. When the model call
// failed, AI carries the user-safe error text and Failed is set; the
// session stays usable.
type TurnResult struct {
	User        types.ChatMessage
	AI          types.ChatMessage
	Reaction    types.Reaction
	HasReaction bool
	Affection   float64
	Failed      bool
}

// Controller owns one user's conversation. All state transitions happen
// under a single mutex; the mutex is released across model calls so a
// slow turn never blocks snapshots, and an epoch counter discards
// results that land after a mood switch.
type Controller struct {
	user      types.User
	gateway   ModelGateway
	history   storage.HistoryRepo
	affection storage.AffectionRepo
	memories  MemoryReader
	pipeline  MemorySink
	notifier  Notifier

	nowFunc   func() time.Time
	delayFunc func() time.Duration
	sleepFunc func(ctx context.Context, d time.Duration)
	newTicker func(d time.Duration) (<-chan time.Time, func())

	mu        sync.Mutex
	state     State
	mood      types.Mood
	epoch     uint64
	session   *gateway.Session
	level     float64
	lastError string
	decayStop chan struct{}
}

// NewController returns a controller for the user in the uninitialized
// state; call Start before sending.
func NewController(user types.User, deps Deps) *Controller {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	delay := deps.Delay
	if delay == nil {
		delay = replyDelay
	}
	return &Controller{
		user:      user,
		gateway:   deps.Gateway,
		history:   deps.History,
		affection: deps.Affection,
		memories:  deps.Memories,
		pipeline:  deps.Pipeline,
		notifier:  notifier,
		nowFunc:   time.Now,
		delayFunc: delay,
		sleepFunc: sleepContext,
		newTicker: newWallTicker,
		state:     StateUninitialized,
		mood:      types.MoodCheerful,
		level:     types.AffectionFloor,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func newWallTicker(d time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(d)
	return ticker.C, ticker.Stop
}

// Start opens the initial session under the default mood.
func (c *Controller) Start(ctx context.Context) error {
	return c.SwitchMood(ctx, types.MoodCheerful)
}

// SwitchMood tears down the active session and opens one under mood:
// affection, recent memories, and history are reloaded for the new
// (user, mood) pair. Any in-flight turn result is discarded. On failure
// the controller enters the error state and the user-safe explanation is
// appended to the transcript as an AI message.
func (c *Controller) SwitchMood(ctx context.Context, mood types.Mood) error {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.stopDecayLocked()
	c.mood = mood
	c.session = nil
	c.state = StateLoading
	c.lastError = ""
	c.mu.Unlock()

	level, err := c.affection.Get(ctx, c.user.ID, mood)
	if err != nil {
		slog.Error("failed to load affection, using floor",
			"user_id", c.user.ID, "mood", string(mood), "error", err.Error())
		level = types.AffectionFloor
	}
	memories := c.memories.Recent(ctx, c.user.ID, types.RecentMemoryMax)
	messages, histErr := c.history.Messages(ctx, c.user.ID, mood)
	if histErr != nil {
		return c.failLoad(ctx, epoch, mood, errs.Wrap(errs.KindInitialization,
			"I'm having trouble remembering our conversation. Please try refreshing the page.", histErr))
	}

	session, greeting, err := c.gateway.CreateSession(ctx, c.user, mood, level, messages, memories)
	if err != nil {
		return c.failLoad(ctx, epoch, mood, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSuperseded
	}
	c.session = session
	c.level = level
	c.state = StateReady
	if len(messages) == 0 && greeting != "" {
		c.appendAILocked(ctx, mood, greeting)
	}
	c.notifier.AmbientChanged(mood)
	c.ensureDecayLocked()
	return nil
}

func (c *Controller) failLoad(ctx context.Context, epoch uint64, mood types.Mood, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSuperseded
	}
	c.state = StateError
	c.lastError = errs.UserMessage(err)
	c.appendAILocked(ctx, mood, c.lastError)
	slog.Error("session creation failed",
		"user_id", c.user.ID, "mood", string(mood), "error", err.Error())
	return err
}

// EnsureMood switches to mood unless a usable session for it already
// exists or is being built.
func (c *Controller) EnsureMood(ctx context.Context, mood types.Mood) error {
	c.mu.Lock()
	if c.mood == mood {
		switch c.state {
		case StateReady, StateSending, StateLoading:
			c.mu.Unlock()
			return nil
		}
	}
	c.mu.Unlock()
	return c.SwitchMood(ctx, mood)
}

// Send runs one turn: the user message is appended and affection bumped
// before the model call, and the reply (or the user-safe error text)
// lands after a short randomized delay. Empty turns, concurrent turns,
// and oversized attachments are rejected up front with nothing appended.
func (c *Controller) Send(ctx context.Context, text string, attachment *types.Attachment) (TurnResult, error) {
	if text == "" && attachment == nil {
		return TurnResult{}, ErrEmptyMessage
	}
	if attachment != nil && attachment.EncodedSize() > types.MaxAttachmentBytes {
		return TurnResult{}, errs.Wrap(errs.KindMalformedAttachment, msgAttachmentTooLarge,
			fmt.Errorf("attachment %q exceeds %d bytes", attachment.Name, types.MaxAttachmentBytes))
	}

	c.mu.Lock()
	switch c.state {
	case StateSending, StateLoading:
		c.mu.Unlock()
		return TurnResult{}, ErrBusy
	case StateReady:
	default:
		c.mu.Unlock()
		return TurnResult{}, ErrNoSession
	}
	if c.session == nil {
		c.mu.Unlock()
		return TurnResult{}, ErrNoSession
	}

	epoch := c.epoch
	mood := c.mood
	session := c.session
	userMsg := types.ChatMessage{
		Sender:     types.SenderUser,
		Text:       text,
		Attachment: attachment,
		Mood:       mood,
		CreatedAt:  c.nowFunc(),
	}
	if err := c.history.AppendMessage(ctx, c.user.ID, userMsg); err != nil {
		slog.Error("failed to persist user message", "user_id", c.user.ID, "error", err.Error())
	}
	c.level = min(types.AffectionCap, c.level+types.AffectionStep)
	c.persistAffectionLocked(ctx, mood)
	c.ensureDecayLocked()
	level := c.level
	c.state = StateSending
	c.mu.Unlock()

	reply, sendErr := c.gateway.SendTurn(ctx, session, text, attachment)
	if sendErr == nil {
		// Error text lands immediately; only real replies get the
		// typing pause.
		c.sleepFunc(ctx, c.delayFunc())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return TurnResult{}, ErrSuperseded
	}
	c.state = StateReady

	result := TurnResult{User: userMsg, Affection: level}
	if sendErr != nil {
		slog.Error("turn failed", "user_id", c.user.ID, "mood", string(mood), "error", sendErr.Error())
		result.Failed = true
		result.AI = c.appendAILocked(ctx, mood, errs.UserMessage(sendErr))
		return result, nil
	}

	result.AI = c.appendAILocked(ctx, mood, reply.Text)
	result.Reaction = reply.Reaction
	result.HasReaction = reply.HasReaction
	c.notifier.ReplyArrived(reply.Reaction, reply.HasReaction)
	if c.pipeline != nil {
		c.pipeline.Enqueue(c.user.ID, c.user.Name, types.ConversationTurn{User: userMsg, AI: result.AI})
	}
	return result, nil
}

// appendAILocked persists and returns an AI transcript message.
func (c *Controller) appendAILocked(ctx context.Context, mood types.Mood, text string) types.ChatMessage {
	msg := types.ChatMessage{
		Sender:    types.SenderAI,
		Text:      text,
		Mood:      mood,
		CreatedAt: c.nowFunc(),
	}
	if err := c.history.AppendMessage(ctx, c.user.ID, msg); err != nil {
		slog.Error("failed to persist AI message", "user_id", c.user.ID, "error", err.Error())
	}
	return msg
}

func (c *Controller) persistAffectionLocked(ctx context.Context, mood types.Mood) {
	if err := c.affection.Set(ctx, c.user.ID, mood, c.level); err != nil {
		slog.Error("failed to persist affection",
			"user_id", c.user.ID, "mood", string(mood), "error", err.Error())
	}
}

// ensureDecayLocked starts the idle decay ticker when the mood decays
// and affection sits above the floor. Cheerful never decays.
func (c *Controller) ensureDecayLocked() {
	if c.decayStop != nil || !c.mood.Decays() || c.level <= types.AffectionFloor {
		return
	}
	tick, stopTicker := c.newTicker(types.DecayTickPeriod)
	stop := make(chan struct{})
	c.decayStop = stop
	epoch := c.epoch
	go func() {
		defer stopTicker()
		for {
			select {
			case <-stop:
				return
			case <-tick:
				if !c.decayTick(epoch) {
					return
				}
			}
		}
	}()
}

// decayTick applies one decay step. Returns false once the loop should
// end: floor reached or the session epoch moved on.
func (c *Controller) decayTick(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	if c.level <= types.AffectionFloor {
		c.clearDecayLocked()
		return false
	}
	c.level = max(types.AffectionFloor, c.level-types.AffectionDecay)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.persistAffectionLocked(ctx, c.mood)

	if c.level <= types.AffectionFloor {
		c.clearDecayLocked()
		return false
	}
	return true
}

func (c *Controller) stopDecayLocked() {
	if c.decayStop != nil {
		close(c.decayStop)
		c.decayStop = nil
	}
}

// clearDecayLocked forgets the ticker without signalling it; the loop is
// exiting on its own.
func (c *Controller) clearDecayLocked() {
	c.decayStop = nil
}

// Snapshot is the externally visible controller state.
type Snapshot struct {
	State     State      `json:"state"`
	Mood      types.Mood `json:"mood"`
	Affection float64    `json:"affection"`
	LastError string     `json:"last_error,omitempty"`
}

// Snapshot returns the current state without blocking on in-flight turns.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Mood: c.mood, Affection: c.level, LastError: c.lastError}
}

// Mood returns the active mood.
func (c *Controller) Mood() types.Mood {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mood
}

// Close stops the decay ticker and ambient playback. The model session
// is ephemeral and needs no remote teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	c.epoch++
	c.stopDecayLocked()
	c.session = nil
	c.state = StateUninitialized
	c.mu.Unlock()
	c.notifier.Silence()
}
