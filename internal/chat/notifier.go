package chat

import (
	"log/slog"

	"github.com/shynlabs/shyn/internal/types"
)

// Notifier receives cosmetic playback cues from the controller. Failure
// to deliver a cue never affects a conversation, so implementations do
// not return errors.
type Notifier interface {
	// ReplyArrived fires when an AI reply lands, with its decoded
	// reaction if one was present.
	ReplyArrived(reaction types.Reaction, hasReaction bool)
	// AmbientChanged fires when a session (re)opens under a mood.
	AmbientChanged(mood types.Mood)
	// Silence stops any ongoing ambient playback.
	Silence()
}

// LogNotifier is the default Notifier; it records cues at debug level.
type LogNotifier struct{}

func (LogNotifier) ReplyArrived(reaction types.Reaction, hasReaction bool) {
	if hasReaction {
		slog.Debug("reply cue", "reaction", string(reaction))
	}
}

func (LogNotifier) AmbientChanged(mood types.Mood) {
	slog.Debug("ambient cue", "mood", string(mood))
}

func (LogNotifier) Silence() {}
