package store

import (
	"errors"
	"fmt"
)

// ErrPersistence matches any *PersistenceError.
var ErrPersistence = errors.New("persistence error")

// ErrLocked indicates another process holds the output lock.
var ErrLocked = errors.New("output is locked by another process")

// PersistenceError reports a failure reading or writing a collection.
type PersistenceError struct {
	Op     string // "open", "load", "save" or "lock"
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Target: target, Err: err}
}
