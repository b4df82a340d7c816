package store

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a mutation targets an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidMood is returned for a mood value outside the five-level scale.
	ErrInvalidMood = errors.New("invalid mood")

	// ErrInvalidUser is returned when a user id is empty.
	ErrInvalidUser = errors.New("user id is required")
)

// Persistence operations reported in PersistenceError.Op.
const (
	OpEncode = "encode"
	OpDecode = "decode"
	OpPut    = "put"
	OpDelete = "delete"
	OpList   = "list"
)

// PersistenceError describes a failed durable read or write. The in-memory
// state is never rolled back because of it.
type PersistenceError struct {
	Collection string
	ID         string
	Op         string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("persistence %s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PersistenceObserver is notified of every persistence failure.
type PersistenceObserver interface {
	ObservePersistenceError(err *PersistenceError)
}
