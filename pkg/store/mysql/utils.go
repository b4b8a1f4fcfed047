package mysql

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/recallhq/recall-go/pkg/store"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads one memory record row.
func scanRecord(row rowScanner) (*store.Record, error) {
	var (
		rec          store.Record
		state        string
		dueAt        sql.NullTime
		lastReviewed sql.NullTime
	)
	err := row.Scan(&rec.LearnerID, &rec.QuestionID, &rec.Memory.Stability,
		&rec.Memory.Difficulty, &state, &dueAt, &rec.Memory.LapseCount,
		&rec.Memory.ReviewCount, &rec.Memory.Streak, &lastReviewed,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := rec.Memory.State.UnmarshalText([]byte(state)); err != nil {
		return nil, err
	}
	if dueAt.Valid {
		rec.Memory.Due = dueAt.Time
	}
	if lastReviewed.Valid {
		t := lastReviewed.Time
		rec.Memory.LastReview = &t
	}
	return &rec, nil
}

// nullTime converts a zero time to NULL.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// nullTimePtr converts a nil time pointer to NULL.
func nullTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func clampRemaining(limit, done int) int {
	if done >= limit {
		return 0
	}
	return limit - done
}

// wrapStorage tags a backend failure so callers can match on
// store.ErrStorageUnavailable while keeping the driver detail.
func wrapStorage(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, store.ErrStorageUnavailable, err)
}
