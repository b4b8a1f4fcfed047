// Package store defines the persistence contracts for the scheduling
// engine: the memory-record store, the daily budget tracker, and the
// transactional review committer.
//
// All backends (SQLite, PostgreSQL, MySQL, Badger, in-memory) implement
// the Store interface. Types live here rather than in pkg/core to avoid
// circular dependencies; pkg/core re-exposes what callers need.
package store

import (
	"context"
	"time"

	"github.com/recallhq/recall-go/pkg/retention"
)

// Record is one persisted memory record: the scheduling state of a
// single learner-question pair.
type Record struct {
	// LearnerID identifies the learner who owns this record.
	LearnerID string

	// QuestionID identifies the question being scheduled.
	QuestionID int64

	// Memory is the retention model state for this pair.
	Memory retention.MemoryState

	// CreatedAt is when the record was first written.
	CreatedAt time.Time

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time
}

// Budget is the pair of daily counters for one learner and calendar
// date. Counters are monotonically non-decreasing within a date and
// reset implicitly when the date key rolls over.
type Budget struct {
	// LearnerID identifies the learner.
	LearnerID string

	// Date is the calendar date in "2006-01-02" form (UTC).
	Date string

	// ReviewsDone is the number of due-item reviews graded today.
	ReviewsDone int

	// NewIntroduced is the number of new items introduced today.
	NewIntroduced int
}

// ReviewLog records a single graded review event. EventID is unique
// per grading event and is what makes ApplyRating at-most-once:
// committing the same EventID twice fails with ErrDuplicateEvent.
type ReviewLog struct {
	// ID is the unique identifier of the log row.
	ID int64

	// EventID is the caller-supplied (or generated) idempotency key.
	EventID string

	// LearnerID identifies the learner.
	LearnerID string

	// QuestionID identifies the question that was graded.
	QuestionID int64

	// Rating is the graded rating that was applied.
	Rating retention.Rating

	// ReviewedAt is when the review was graded.
	ReviewedAt time.Time
}

// Caps are the configured daily limits enforced by the budget tracker.
type Caps struct {
	// ReviewLimit is the maximum due-item reviews per learner per day.
	ReviewLimit int

	// NewLimit is the maximum new items introduced per learner per day.
	NewLimit int
}

// BudgetKind selects which daily counter a review consumes.
type BudgetKind int

const (
	// BudgetReview consumes the due-review counter.
	BudgetReview BudgetKind = iota + 1

	// BudgetNew consumes the new-item counter.
	BudgetNew
)

// MemoryStore is the durable mapping (learner, question) -> memory state.
type MemoryStore interface {
	// GetRecord returns the record for the pair, or ErrRecordNotFound
	// if the pair has never been scheduled. Storage failures are
	// reported as distinct errors; callers must not conflate the two.
	GetRecord(ctx context.Context, learnerID string, questionID int64) (*Record, error)

	// UpsertRecord replaces the full record for its (learner, question)
	// key. The write is atomic per key: no partial record is ever
	// visible to readers.
	UpsertRecord(ctx context.Context, rec *Record) error

	// DueBefore returns all records for the learner with a due time at
	// or before threshold, ordered by due time ascending with ties
	// broken by question ID ascending. Records in the New state are
	// never due.
	DueBefore(ctx context.Context, learnerID string, threshold time.Time) ([]*Record, error)

	// AttemptedQuestions returns the set of question IDs the learner
	// has ever been graded on. Used to select new-item candidates.
	AttemptedQuestions(ctx context.Context, learnerID string) (map[int64]bool, error)

	// Close releases backend resources.
	Close() error
}

// BudgetTracker maintains the per-(learner, date) daily counters.
// Implementations own their configured Caps and refuse increments that
// would exceed them, as a guard against caller bugs.
type BudgetTracker interface {
	// Remaining returns how many due reviews and new introductions the
	// learner has left on the given date.
	Remaining(ctx context.Context, learnerID, date string) (reviewsLeft, newLeft int, err error)

	// RecordReview atomically increments the review counter, or
	// returns ErrCapacityExceeded if the cap would be exceeded.
	RecordReview(ctx context.Context, learnerID, date string) error

	// RecordNew atomically increments the new-item counter, or
	// returns ErrCapacityExceeded if the cap would be exceeded.
	RecordNew(ctx context.Context, learnerID, date string) error
}

// ReviewCommitter applies one graded review as a unit: the record
// upsert, the review log append, and the budget increment either all
// happen or none do. A duplicate log EventID fails the whole commit
// with ErrDuplicateEvent; a budget cap violation fails it with
// ErrCapacityExceeded.
type ReviewCommitter interface {
	CommitReview(ctx context.Context, rec *Record, log *ReviewLog, kind BudgetKind) error
}

// ReviewLogStore reads back committed review events.
type ReviewLogStore interface {
	// ReviewLogs returns the committed review events for the pair in
	// chronological order (reviewed-at ascending, ID ascending on ties).
	ReviewLogs(ctx context.Context, learnerID string, questionID int64) ([]*ReviewLog, error)
}

// Store is the full persistence surface consumed by the session
// allocator.
type Store interface {
	MemoryStore
	BudgetTracker
	ReviewCommitter
	ReviewLogStore
}

// DateKey formats a time as the budget date key for its UTC day.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
