package store

import "errors"

// Predefined errors shared by all storage backends.
var (
	// ErrRecordNotFound indicates the (learner, question) pair has
	// never been scheduled. This is not a storage failure.
	ErrRecordNotFound = errors.New("store: record not found")

	// ErrCapacityExceeded indicates an increment would push a daily
	// counter past its configured cap.
	ErrCapacityExceeded = errors.New("store: daily capacity exceeded")

	// ErrDuplicateEvent indicates a review log with the same event ID
	// was already committed.
	ErrDuplicateEvent = errors.New("store: duplicate review event")

	// ErrStorageUnavailable indicates an I/O failure in the backend.
	// Callers may retry with backoff.
	ErrStorageUnavailable = errors.New("store: storage unavailable")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store: closed")
)
