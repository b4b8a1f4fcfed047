package core

import "time"

// ApplyOption is a function type for configuring ApplyRating operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type ApplyOption func(*ApplyOptions)

// ApplyOptions contains configuration options for ApplyRating operations.
type ApplyOptions struct {
	// EventID is the idempotency key for the grading event. When
	// empty, the client generates one.
	EventID string

	// At is the grading instant. Zero means time.Now().
	At time.Time
}

// WithEventID sets the idempotency key for an ApplyRating operation.
//
// Supplying the same event ID twice makes the second call fail with
// ErrDuplicateEvent instead of double-counting the review.
//
// Example:
//
//	snap, _ := client.ApplyRating(ctx, learner, qid, rating,
//	    core.WithEventID("answer-7f3a9c"))
func WithEventID(eventID string) ApplyOption {
	return func(opts *ApplyOptions) {
		opts.EventID = eventID
	}
}

// WithReviewTime sets the grading instant for an ApplyRating operation.
//
// Useful for replaying historical answer logs.
//
// Example:
//
//	snap, _ := client.ApplyRating(ctx, learner, qid, rating,
//	    core.WithReviewTime(answeredAt))
func WithReviewTime(at time.Time) ApplyOption {
	return func(opts *ApplyOptions) {
		opts.At = at
	}
}

// applyApplyOptions applies ApplyRating options to create ApplyOptions.
func applyApplyOptions(opts []ApplyOption) *ApplyOptions {
	options := &ApplyOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// BuildOption is a function type for configuring BuildSession operations.
type BuildOption func(*BuildOptions)

// BuildOptions contains configuration options for BuildSession operations.
type BuildOptions struct {
	// MaxDue caps the due portion below the remaining review budget.
	// Zero means no extra cap.
	MaxDue int

	// MaxNew caps the new portion below the remaining new budget.
	// Zero means no extra cap.
	MaxNew int
}

// WithMaxDue caps the due portion of a session below the remaining
// daily review budget.
//
// Example:
//
//	session, _ := client.BuildSession(ctx, learner, now, core.WithMaxDue(25))
func WithMaxDue(n int) BuildOption {
	return func(opts *BuildOptions) {
		opts.MaxDue = n
	}
}

// WithMaxNew caps the new portion of a session below the remaining
// daily new budget.
//
// Example:
//
//	session, _ := client.BuildSession(ctx, learner, now, core.WithMaxNew(5))
func WithMaxNew(n int) BuildOption {
	return func(opts *BuildOptions) {
		opts.MaxNew = n
	}
}

// applyBuildOptions applies BuildSession options to create BuildOptions.
func applyBuildOptions(opts []BuildOption) *BuildOptions {
	options := &BuildOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
