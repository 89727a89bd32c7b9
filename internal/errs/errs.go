// Package errs defines the error taxonomy crossing component boundaries.
// Every failure surfaced to a user is converted to one of these kinds with
// a user-safe message; transport detail stays in the wrapped cause.
package errs

import "errors"

// Kind classifies a user-presentable failure.
type Kind int

const (
	// KindUnknown is the zero value; never constructed explicitly.
	KindUnknown Kind = iota
	// KindConfiguration means the service credential is absent or invalid.
	// Fatal to session creation; the message hints at a setup problem.
	KindConfiguration
	// KindInitialization means session creation failed for any other
	// reason; recoverable by reloading the mood or page.
	KindInitialization
	// KindNetwork means a turn send failed due to connectivity.
	KindNetwork
	// KindService means a turn send failed for any other service-side
	// reason.
	KindService
	// KindGeneration means avatar image generation returned no result.
	KindGeneration
	// KindMalformedAttachment means an attachment payload was undecodable
	// or too large.
	KindMalformedAttachment
)

// Error carries a kind, a message safe to show the user, and the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a user-safe message and kind to err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage returns the user-safe message attached to err, falling back
// to a generic apology so raw causes never leak into a transcript.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "I'm sorry, I encountered a technical difficulty. Could you please try again in a moment?"
}
