package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientNetwork marks a timed-out, refused or malformed remote call.
	// It is reported to the user and never ends the session.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrStaleResponse marks a result that belongs to a superseded generation.
	ErrStaleResponse = errors.New("stale response")
	// ErrInvalidFrame marks a malformed sensor reading.
	ErrInvalidFrame = errors.New("invalid sensor frame")
	// ErrSpeechBusy is returned when an utterance is already playing.
	ErrSpeechBusy = errors.New("speech already in progress")
)

// NetworkError wraps a failed remote call. errors.Is(err, ErrTransientNetwork) holds.
type NetworkError struct {
	Op         string // e.g. "classify", "enhance", "synthesize"
	StatusCode int    // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrTransientNetwork, e.Err} }

// NewNetworkError is shorthand for &NetworkError{...}.
func NewNetworkError(op string, status int, err error) error {
	return &NetworkError{Op: op, StatusCode: status, Err: err}
}
