// Package memory provides an in-memory implementation of the store
// contracts. It is intended for tests, examples, and single-process
// deployments that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/recallhq/recall-go/pkg/store"
)

// Client implements store.Store with mutex-guarded maps.
type Client struct {
	mu      sync.RWMutex
	caps    store.Caps
	records   map[string]map[int64]store.Record // learner -> question -> record
	budgets   map[string]store.Budget           // learner + "|" + date
	logs      []store.ReviewLog
	nextLogID int64
	events    map[string]bool
	closed    bool
}

// Config contains configuration for the in-memory store.
type Config struct {
	// Caps are the daily budget limits enforced by the tracker.
	Caps store.Caps
}

// NewClient creates a new in-memory store.
func NewClient(cfg *Config) *Client {
	return &Client{
		caps:    cfg.Caps,
		records: make(map[string]map[int64]store.Record),
		budgets: make(map[string]store.Budget),
		events:  make(map[string]bool),
	}
}

// GetRecord returns the record for the pair, or store.ErrRecordNotFound.
func (c *Client) GetRecord(_ context.Context, learnerID string, questionID int64) (*store.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, store.ErrClosed
	}
	rec, ok := c.records[learnerID][questionID]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	out := rec
	return &out, nil
}

// UpsertRecord replaces the full record for its key.
func (c *Client) UpsertRecord(_ context.Context, rec *store.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	c.upsertLocked(rec, time.Now())
	return nil
}

func (c *Client) upsertLocked(rec *store.Record, now time.Time) {
	byQuestion, ok := c.records[rec.LearnerID]
	if !ok {
		byQuestion = make(map[int64]store.Record)
		c.records[rec.LearnerID] = byQuestion
	}
	stored := *rec
	if prev, ok := byQuestion[rec.QuestionID]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	byQuestion[rec.QuestionID] = stored
}

// DueBefore returns the learner's due records ordered by due time
// ascending, question ID ascending on ties.
func (c *Client) DueBefore(_ context.Context, learnerID string, threshold time.Time) ([]*store.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, store.ErrClosed
	}
	var due []*store.Record
	for _, rec := range c.records[learnerID] {
		if rec.Memory.IsNew() || rec.Memory.Due.After(threshold) {
			continue
		}
		out := rec
		due = append(due, &out)
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].Memory.Due.Equal(due[j].Memory.Due) {
			return due[i].Memory.Due.Before(due[j].Memory.Due)
		}
		return due[i].QuestionID < due[j].QuestionID
	})
	return due, nil
}

// AttemptedQuestions returns the set of questions the learner has been
// graded on.
func (c *Client) AttemptedQuestions(_ context.Context, learnerID string) (map[int64]bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, store.ErrClosed
	}
	attempted := make(map[int64]bool)
	for id, rec := range c.records[learnerID] {
		if rec.Memory.ReviewCount > 0 {
			attempted[id] = true
		}
	}
	return attempted, nil
}

// Remaining returns the learner's remaining daily capacity.
func (c *Client) Remaining(_ context.Context, learnerID, date string) (int, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, 0, store.ErrClosed
	}
	b := c.budgets[learnerID+"|"+date]
	return remaining(c.caps.ReviewLimit, b.ReviewsDone), remaining(c.caps.NewLimit, b.NewIntroduced), nil
}

// RecordReview increments the review counter with a cap guard.
func (c *Client) RecordReview(_ context.Context, learnerID, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	return c.incrementLocked(learnerID, date, store.BudgetReview)
}

// RecordNew increments the new-item counter with a cap guard.
func (c *Client) RecordNew(_ context.Context, learnerID, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	return c.incrementLocked(learnerID, date, store.BudgetNew)
}

func (c *Client) incrementLocked(learnerID, date string, kind store.BudgetKind) error {
	key := learnerID + "|" + date
	b, ok := c.budgets[key]
	if !ok {
		b = store.Budget{LearnerID: learnerID, Date: date}
	}
	switch kind {
	case store.BudgetReview:
		if b.ReviewsDone >= c.caps.ReviewLimit {
			return store.ErrCapacityExceeded
		}
		b.ReviewsDone++
	case store.BudgetNew:
		if b.NewIntroduced >= c.caps.NewLimit {
			return store.ErrCapacityExceeded
		}
		b.NewIntroduced++
	}
	c.budgets[key] = b
	return nil
}

// CommitReview applies the record upsert, log append, and budget
// increment under a single lock. Nothing is written if the event is a
// duplicate or the budget cap would be exceeded.
func (c *Client) CommitReview(_ context.Context, rec *store.Record, log *store.ReviewLog, kind store.BudgetKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	if c.events[log.EventID] {
		return store.ErrDuplicateEvent
	}
	if err := c.incrementLocked(rec.LearnerID, store.DateKey(log.ReviewedAt), kind); err != nil {
		return err
	}
	c.upsertLocked(rec, time.Now())
	c.events[log.EventID] = true
	// Commit-order IDs keep the timestamp tie-break deterministic, the
	// same role autoincrement columns play in the SQL backends.
	stored := *log
	if stored.ID == 0 {
		c.nextLogID++
		stored.ID = c.nextLogID
	}
	c.logs = append(c.logs, stored)
	return nil
}

// ReviewLogs returns the committed review events for the pair in
// chronological order.
func (c *Client) ReviewLogs(_ context.Context, learnerID string, questionID int64) ([]*store.ReviewLog, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, store.ErrClosed
	}
	var out []*store.ReviewLog
	for i := range c.logs {
		if c.logs[i].LearnerID == learnerID && c.logs[i].QuestionID == questionID {
			l := c.logs[i]
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReviewedAt.Equal(out[j].ReviewedAt) {
			return out[i].ReviewedAt.Before(out[j].ReviewedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close marks the store closed. Subsequent calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func remaining(limit, done int) int {
	if done >= limit {
		return 0
	}
	return limit - done
}

var _ store.Store = (*Client)(nil)
