package breezy

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the store, the envelope codec and the engine.
// Callers match them with errors.Is; the engine converts them into
// result code 1 at the callback boundary.
var (
	// ErrMalformedEnvelope is returned when a required envelope field
	// is missing.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrDecode is returned when wire bytes do not parse.
	ErrDecode = errors.New("decode error")

	// ErrNotOpen is returned by store operations attempted before Open.
	ErrNotOpen = errors.New("store not opened")

	// ErrHandlerNotFound is returned when no handler is registered for
	// a route or query path.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrNotFound is returned by query handlers when the requested
	// record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientState is the base for domain failures where
	// referenced state is missing or inadequate (unknown account,
	// insufficient balance).
	ErrInsufficientState = errors.New("insufficient state")

	// ErrUnknownType is returned when a route receives an envelope
	// type it does not handle.
	ErrUnknownType = errors.New("unknown envelope type")
)

// HaltError signals that the application detected an irrecoverable
// failure and the chain must stop.
//
// Commit returns a HaltError when the store could not be flushed. The
// runtime must not retry the block.
type HaltError struct {
	Reason string
	Height uint64
	Err    error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("HALT at height %d: %s", e.Height, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *HaltError) Unwrap() error { return e.Err }

// NewHaltError creates a new HaltError.
func NewHaltError(height uint64, reason string) *HaltError {
	return &HaltError{Height: height, Reason: reason}
}

// Halt wraps err as a HaltError at the given height.
func Halt(height uint64, err error) *HaltError {
	return &HaltError{Height: height, Reason: err.Error(), Err: err}
}

// IsHalt checks whether an error is a HaltError and returns it.
func IsHalt(err error) (*HaltError, bool) {
	var h *HaltError
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}
