// Package sqlite provides the SQLite implementation of the store
// contracts.
//
// SQLite is a lightweight, file-based database suitable for local
// development and single-node deployments. Records, daily budgets,
// and review logs live in three tables; commits run in a single
// transaction, which SQLite serializes per database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/recallhq/recall-go/pkg/retention"
	"github.com/recallhq/recall-go/pkg/store"
)

// Client implements store.Store using SQLite as the backend.
type Client struct {
	db   *sql.DB
	caps store.Caps
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// Caps are the daily budget limits enforced by the tracker.
	Caps store.Caps
}

// NewClient creates a new SQLite store client.
//
// The parent directory of DBPath is created if it does not exist, and
// the schema is initialized on first use.
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{db: db, caps: cfg.Caps}
	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (
			learner_id TEXT NOT NULL,
			question_id INTEGER NOT NULL,
			stability REAL NOT NULL DEFAULT 0,
			difficulty REAL NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			due_at TIMESTAMP,
			lapse_count INTEGER NOT NULL DEFAULT 0,
			review_count INTEGER NOT NULL DEFAULT 0,
			streak INTEGER NOT NULL DEFAULT 0,
			last_reviewed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (learner_id, question_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_records_due
			ON memory_records(learner_id, due_at)`,
		`CREATE TABLE IF NOT EXISTS daily_budgets (
			learner_id TEXT NOT NULL,
			date TEXT NOT NULL,
			reviews_done INTEGER NOT NULL DEFAULT 0,
			new_introduced INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (learner_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS review_logs (
			id INTEGER PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			learner_id TEXT NOT NULL,
			question_id INTEGER NOT NULL,
			rating INTEGER NOT NULL,
			reviewed_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_logs_pair
			ON review_logs(learner_id, question_id)`,
	}
	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}
	return nil
}

// GetRecord retrieves the record for the pair, or store.ErrRecordNotFound.
func (c *Client) GetRecord(ctx context.Context, learnerID string, questionID int64) (*store.Record, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT learner_id, question_id, stability, difficulty, state, due_at,
		       lapse_count, review_count, streak, last_reviewed_at, created_at, updated_at
		FROM memory_records WHERE learner_id = ? AND question_id = ?`,
		learnerID, questionID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrRecordNotFound
	}
	if err != nil {
		return nil, wrapStorage("GetRecord", err)
	}
	return rec, nil
}

// UpsertRecord replaces the full record for its key atomically.
func (c *Client) UpsertRecord(ctx context.Context, rec *store.Record) error {
	if err := c.upsertRecord(ctx, c.db, rec, time.Now()); err != nil {
		return wrapStorage("UpsertRecord", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (c *Client) upsertRecord(ctx context.Context, ex execer, rec *store.Record, now time.Time) error {
	stateText, err := rec.Memory.State.MarshalText()
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO memory_records
			(learner_id, question_id, stability, difficulty, state, due_at,
			 lapse_count, review_count, streak, last_reviewed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, question_id) DO UPDATE SET
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			state = excluded.state,
			due_at = excluded.due_at,
			lapse_count = excluded.lapse_count,
			review_count = excluded.review_count,
			streak = excluded.streak,
			last_reviewed_at = excluded.last_reviewed_at,
			updated_at = excluded.updated_at`,
		rec.LearnerID, rec.QuestionID, rec.Memory.Stability, rec.Memory.Difficulty,
		string(stateText), nullTime(rec.Memory.Due), rec.Memory.LapseCount,
		rec.Memory.ReviewCount, rec.Memory.Streak, nullTimePtr(rec.Memory.LastReview),
		now, now)
	return err
}

// DueBefore returns due records ordered by due time ascending, question
// ID ascending on ties.
func (c *Client) DueBefore(ctx context.Context, learnerID string, threshold time.Time) ([]*store.Record, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT learner_id, question_id, stability, difficulty, state, due_at,
		       lapse_count, review_count, streak, last_reviewed_at, created_at, updated_at
		FROM memory_records
		WHERE learner_id = ? AND due_at IS NOT NULL AND due_at <= ? AND state != 'New'
		ORDER BY due_at ASC, question_id ASC`,
		learnerID, threshold)
	if err != nil {
		return nil, wrapStorage("DueBefore", err)
	}
	defer rows.Close()

	var due []*store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrapStorage("DueBefore", err)
		}
		due = append(due, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage("DueBefore", err)
	}
	return due, nil
}

// AttemptedQuestions returns the set of questions the learner has been
// graded on.
func (c *Client) AttemptedQuestions(ctx context.Context, learnerID string) (map[int64]bool, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT question_id FROM memory_records
		WHERE learner_id = ? AND review_count > 0`,
		learnerID)
	if err != nil {
		return nil, wrapStorage("AttemptedQuestions", err)
	}
	defer rows.Close()

	attempted := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStorage("AttemptedQuestions", err)
		}
		attempted[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage("AttemptedQuestions", err)
	}
	return attempted, nil
}

// Remaining returns the learner's remaining daily capacity.
func (c *Client) Remaining(ctx context.Context, learnerID, date string) (int, int, error) {
	var done, introduced int
	err := c.db.QueryRowContext(ctx, `
		SELECT reviews_done, new_introduced FROM daily_budgets
		WHERE learner_id = ? AND date = ?`,
		learnerID, date).Scan(&done, &introduced)
	if err == sql.ErrNoRows {
		return c.caps.ReviewLimit, c.caps.NewLimit, nil
	}
	if err != nil {
		return 0, 0, wrapStorage("Remaining", err)
	}
	return clampRemaining(c.caps.ReviewLimit, done), clampRemaining(c.caps.NewLimit, introduced), nil
}

// RecordReview atomically increments the review counter with a cap guard.
func (c *Client) RecordReview(ctx context.Context, learnerID, date string) error {
	return c.increment(ctx, c.db, learnerID, date, store.BudgetReview)
}

// RecordNew atomically increments the new-item counter with a cap guard.
func (c *Client) RecordNew(ctx context.Context, learnerID, date string) error {
	return c.increment(ctx, c.db, learnerID, date, store.BudgetNew)
}

// increment performs the cap-guarded counter bump. The UPDATE only
// matches rows still under the cap, so concurrent callers can never
// push a counter past its limit.
func (c *Client) increment(ctx context.Context, ex execer, learnerID, date string, kind store.BudgetKind) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO daily_budgets (learner_id, date, reviews_done, new_introduced)
		VALUES (?, ?, 0, 0)
		ON CONFLICT(learner_id, date) DO NOTHING`,
		learnerID, date)
	if err != nil {
		return wrapStorage("increment", err)
	}

	column, limit := "reviews_done", c.caps.ReviewLimit
	if kind == store.BudgetNew {
		column, limit = "new_introduced", c.caps.NewLimit
	}
	res, err := ex.ExecContext(ctx, fmt.Sprintf(`
		UPDATE daily_budgets SET %s = %s + 1
		WHERE learner_id = ? AND date = ? AND %s < ?`, column, column, column),
		learnerID, date, limit)
	if err != nil {
		return wrapStorage("increment", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStorage("increment", err)
	}
	if affected == 0 {
		return store.ErrCapacityExceeded
	}
	return nil
}

// CommitReview applies the record upsert, review log append, and budget
// increment in one transaction.
func (c *Client) CommitReview(ctx context.Context, rec *store.Record, log *store.ReviewLog, kind store.BudgetKind) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorage("CommitReview", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_logs WHERE event_id = ?`, log.EventID).Scan(&exists)
	if err != nil {
		return wrapStorage("CommitReview", err)
	}
	if exists > 0 {
		return store.ErrDuplicateEvent
	}

	if err := c.increment(ctx, tx, rec.LearnerID, store.DateKey(log.ReviewedAt), kind); err != nil {
		return err
	}
	if err := c.upsertRecord(ctx, tx, rec, time.Now()); err != nil {
		return wrapStorage("CommitReview", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (event_id, learner_id, question_id, rating, reviewed_at)
		VALUES (?, ?, ?, ?, ?)`,
		log.EventID, log.LearnerID, log.QuestionID, int(log.Rating), log.ReviewedAt)
	if err != nil {
		return wrapStorage("CommitReview", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStorage("CommitReview", err)
	}
	return nil
}

// ReviewLogs returns the committed review events for the pair.
func (c *Client) ReviewLogs(ctx context.Context, learnerID string, questionID int64) ([]*store.ReviewLog, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, event_id, learner_id, question_id, rating, reviewed_at
		FROM review_logs
		WHERE learner_id = ? AND question_id = ?
		ORDER BY reviewed_at ASC, id ASC`,
		learnerID, questionID)
	if err != nil {
		return nil, wrapStorage("ReviewLogs", err)
	}
	defer rows.Close()

	var logs []*store.ReviewLog
	for rows.Next() {
		var l store.ReviewLog
		var rating int
		if err := rows.Scan(&l.ID, &l.EventID, &l.LearnerID, &l.QuestionID, &rating, &l.ReviewedAt); err != nil {
			return nil, wrapStorage("ReviewLogs", err)
		}
		l.Rating = retention.Rating(rating)
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage("ReviewLogs", err)
	}
	return logs, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

var _ store.Store = (*Client)(nil)
