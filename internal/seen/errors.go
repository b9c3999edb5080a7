package seen

import (
	"errors"
	"fmt"
)

var (
	ErrClosed          = errors.New("seen store closed")
	ErrAlreadyRecorded = errors.New("identity already recorded")
)

// CorruptStateError means existing durable state could not be parsed.
// Startup must abort rather than start over with an empty history.
type CorruptStateError struct {
	Source string
	Err    error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt seen state in %s: %v", e.Source, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// PersistenceWriteError means a new entry could not be made durable. The
// in-memory insert has been rolled back.
type PersistenceWriteError struct {
	Identity string
	Err      error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("persist seen entry %q: %v", e.Identity, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error { return e.Err }
