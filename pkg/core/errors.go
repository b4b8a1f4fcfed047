// Package core provides the session allocator client that ties the
// retention model, the memory record store, and the daily budget
// tracker together.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidRating indicates a rating outside Fail..Easy. The
	// rating is rejected before any state is mutated.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrQuestionNotFound indicates the rated question does not exist
	// or is no longer active.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrCapacityExceeded indicates a grading event would exceed a
	// daily budget cap. The allocator never hands out more than the
	// remaining capacity, so hitting this usually points at a caller
	// grading outside the built session. Not retryable.
	ErrCapacityExceeded = errors.New("daily capacity exceeded")

	// ErrDuplicateEvent indicates a grading event with the same event
	// ID was already applied.
	ErrDuplicateEvent = errors.New("duplicate grading event")

	// ErrStorageUnavailable indicates a store or tracker I/O failure.
	// The caller may retry with backoff; the client itself never
	// retries so a grading event stays at-most-once.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// SchedulerError wraps errors with operation context.
//
// It provides additional context about which client operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &SchedulerError{
//	    Op:  "ApplyRating",
//	    Err: ErrInvalidRating,
//	}
//	// Error() returns: "recall: ApplyRating: invalid rating"
type SchedulerError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "recall: <Op>: <Err>"
func (e *SchedulerError) Error() string {
	return fmt.Sprintf("recall: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with SchedulerError.
func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// NewSchedulerError creates a new SchedulerError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewSchedulerError("ApplyRating", err)
//	}
func NewSchedulerError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SchedulerError{
		Op:  op,
		Err: err,
	}
}
