package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReference is returned for references that do not parse.
	ErrInvalidReference = errors.New("invalid element reference")

	// ErrDisconnected is returned when resolving against a deserialized
	// snapshot that was never reconnected.
	ErrDisconnected = errors.New("snapshot is disconnected from a live page")

	// ErrNoFrames is returned when the snapshot holds no frame handles.
	ErrNoFrames = errors.New("snapshot has no frame handles")

	// ErrFrameOutOfRange is returned when a reference names a frame index the
	// snapshot does not have.
	ErrFrameOutOfRange = errors.New("frame index out of range")

	// ErrFrameNotRestored is returned for nested-frame references on a
	// snapshot reconnected after deserialization. It wraps ErrFrameOutOfRange.
	ErrFrameNotRestored = fmt.Errorf("%w: nested frames are not restored after rehydration", ErrFrameOutOfRange)
)

// ReferenceError reports a reference that cannot be resolved. It indicates a
// stale or malformed reference from the caller, not a driver fault.
type ReferenceError struct {
	Ref string
	Err error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("cannot resolve ref %q: %v; take a new snapshot and use a current ref", e.Ref, e.Err)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// IsReferenceError reports whether err is a reference-resolution failure.
func IsReferenceError(err error) bool {
	var re *ReferenceError
	return errors.As(err, &re)
}
