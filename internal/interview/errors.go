package interview

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned when answering a completed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrConflict is returned when a concurrent mutation committed while a
	// gateway call was in flight. The in-flight result is discarded.
	ErrConflict = errors.New("session was modified concurrently")
)

// ValidationError rejects an unusable answer. Reprompt carries the question
// to ask again; no session state changed.
type ValidationError struct {
	Reason   string
	Reprompt string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer: %s", e.Reason)
}

// AsValidation extracts a ValidationError when err is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
