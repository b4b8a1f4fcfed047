// Package mysql provides the MySQL implementation of the store
// contracts. It also works against MySQL-compatible databases such as
// OceanBase and TiDB.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/recallhq/recall-go/pkg/retention"
	"github.com/recallhq/recall-go/pkg/store"
)

// Client implements store.Store using MySQL as the backend.
type Client struct {
	db   *sql.DB
	caps store.Caps
}

// Config contains MySQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// Caps are the daily budget limits enforced by the tracker.
	Caps store.Caps
}

// NewClient creates a new MySQL store client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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
			learner_id VARCHAR(255) NOT NULL,
			question_id BIGINT NOT NULL,
			stability DOUBLE NOT NULL DEFAULT 0,
			difficulty DOUBLE NOT NULL DEFAULT 0,
			state VARCHAR(16) NOT NULL,
			due_at DATETIME(6) NULL,
			lapse_count INT NOT NULL DEFAULT 0,
			review_count INT NOT NULL DEFAULT 0,
			streak INT NOT NULL DEFAULT 0,
			last_reviewed_at DATETIME(6) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (learner_id, question_id),
			KEY idx_memory_records_due (learner_id, due_at)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_budgets (
			learner_id VARCHAR(255) NOT NULL,
			date VARCHAR(10) NOT NULL,
			reviews_done INT NOT NULL DEFAULT 0,
			new_introduced INT NOT NULL DEFAULT 0,
			PRIMARY KEY (learner_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS review_logs (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			event_id VARCHAR(64) NOT NULL UNIQUE,
			learner_id VARCHAR(255) NOT NULL,
			question_id BIGINT NOT NULL,
			rating INT NOT NULL,
			reviewed_at DATETIME(6) NOT NULL,
			KEY idx_review_logs_pair (learner_id, question_id)
		)`,
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
		ON DUPLICATE KEY UPDATE
			stability = VALUES(stability),
			difficulty = VALUES(difficulty),
			state = VALUES(state),
			due_at = VALUES(due_at),
			lapse_count = VALUES(lapse_count),
			review_count = VALUES(review_count),
			streak = VALUES(streak),
			last_reviewed_at = VALUES(last_reviewed_at),
			updated_at = VALUES(updated_at)`,
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

func (c *Client) increment(ctx context.Context, ex execer, learnerID, date string, kind store.BudgetKind) error {
	_, err := ex.ExecContext(ctx, `
		INSERT IGNORE INTO daily_budgets (learner_id, date, reviews_done, new_introduced)
		VALUES (?, ?, 0, 0)`,
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
