package execution

import (
	"errors"
	"fmt"
)

var (
	// ErrTimedOut is returned when a run exceeds its timeout.
	ErrTimedOut = errors.New("command timed out")
	// ErrCanceled is returned when the caller's context ends before the run
	// completes, including while waiting for a free slot.
	ErrCanceled = errors.New("execution canceled")
)

// SpawnError means the process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// CaptureError means the process started but its exit or output could not
// be collected.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("failed to capture output: %v", e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
