// Package badger provides an embedded key-value implementation of the
// store contracts using BadgerDB.
//
// Key layout (single-byte prefixes):
//   - Records: 0x01 + learnerID + 0x00 + questionID(8B BE) -> JSON(Record)
//   - Budgets: 0x02 + learnerID + 0x00 + date              -> JSON(Budget)
//   - Events:  0x03 + eventID                              -> empty
//   - Logs:    0x04 + learnerID + 0x00 + questionID(8B BE)
//     + logID(8B BE)                    -> JSON(ReviewLog)
//   - Log IDs: 0x05 (badger sequence counter)
//
// All writes run inside badger transactions, so CommitReview is atomic
// without any extra locking.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/recallhq/recall-go/pkg/store"
)

const (
	prefixRecord = byte(0x01)
	prefixBudget = byte(0x02)
	prefixEvent  = byte(0x03)
	prefixLog    = byte(0x04)
	prefixLogSeq = byte(0x05)
)

// logSeqBandwidth is how many log IDs a sequence lease reserves at once.
const logSeqBandwidth = 128

// Client implements store.Store using BadgerDB as the backend.
type Client struct {
	db     *badger.DB
	logSeq *badger.Sequence
	caps   store.Caps
}

// Config contains configuration for the Badger store.
type Config struct {
	// DataDir is the directory for data files. Ignored when InMemory.
	DataDir string

	// InMemory runs BadgerDB without persistence. Useful for tests.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool

	// Caps are the daily budget limits enforced by the tracker.
	Caps store.Caps
}

// NewClient creates a new Badger store client.
func NewClient(cfg *Config) (*Client, error) {
	opts := badger.DefaultOptions(cfg.DataDir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewBadgerClient: %w", err)
	}
	seq, err := db.GetSequence([]byte{prefixLogSeq}, logSeqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewBadgerClient: %w", err)
	}
	return &Client{db: db, logSeq: seq, caps: cfg.Caps}, nil
}

func recordKey(learnerID string, questionID int64) []byte {
	key := make([]byte, 0, 1+len(learnerID)+1+8)
	key = append(key, prefixRecord)
	key = append(key, learnerID...)
	key = append(key, 0x00)
	key = binary.BigEndian.AppendUint64(key, uint64(questionID))
	return key
}

func recordPrefix(learnerID string) []byte {
	key := make([]byte, 0, 1+len(learnerID)+1)
	key = append(key, prefixRecord)
	key = append(key, learnerID...)
	key = append(key, 0x00)
	return key
}

func budgetKey(learnerID, date string) []byte {
	key := make([]byte, 0, 1+len(learnerID)+1+len(date))
	key = append(key, prefixBudget)
	key = append(key, learnerID...)
	key = append(key, 0x00)
	key = append(key, date...)
	return key
}

func eventKey(eventID string) []byte {
	return append([]byte{prefixEvent}, eventID...)
}

func logKey(learnerID string, questionID, logID int64) []byte {
	key := logPrefix(learnerID, questionID)
	return binary.BigEndian.AppendUint64(key, uint64(logID))
}

func logPrefix(learnerID string, questionID int64) []byte {
	key := make([]byte, 0, 1+len(learnerID)+1+16)
	key = append(key, prefixLog)
	key = append(key, learnerID...)
	key = append(key, 0x00)
	key = binary.BigEndian.AppendUint64(key, uint64(questionID))
	return key
}

// GetRecord retrieves the record for the pair, or store.ErrRecordNotFound.
func (c *Client) GetRecord(_ context.Context, learnerID string, questionID int64) (*store.Record, error) {
	var rec store.Record
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(learnerID, questionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrRecordNotFound
	}
	if err != nil {
		return nil, wrapStorage("GetRecord", err)
	}
	return &rec, nil
}

// UpsertRecord replaces the full record for its key atomically.
func (c *Client) UpsertRecord(_ context.Context, rec *store.Record) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return upsertRecordTxn(txn, rec, time.Now())
	})
	if err != nil {
		return wrapStorage("UpsertRecord", err)
	}
	return nil
}

func upsertRecordTxn(txn *badger.Txn, rec *store.Record, now time.Time) error {
	stored := *rec
	key := recordKey(rec.LearnerID, rec.QuestionID)

	item, err := txn.Get(key)
	switch err {
	case nil:
		var prev store.Record
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &prev)
		}); err != nil {
			return err
		}
		stored.CreatedAt = prev.CreatedAt
	case badger.ErrKeyNotFound:
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
	default:
		return err
	}
	stored.UpdatedAt = now

	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// DueBefore returns due records ordered by due time ascending, question
// ID ascending on ties. Badger has no secondary index on due times, so
// the learner's records are scanned and sorted in memory.
func (c *Client) DueBefore(_ context.Context, learnerID string, threshold time.Time) ([]*store.Record, error) {
	var due []*store.Record
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := recordPrefix(learnerID)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec store.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.Memory.IsNew() || rec.Memory.Due.After(threshold) {
				continue
			}
			out := rec
			due = append(due, &out)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage("DueBefore", err)
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
	attempted := make(map[int64]bool)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := recordPrefix(learnerID)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec store.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.Memory.ReviewCount > 0 {
				attempted[rec.QuestionID] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage("AttemptedQuestions", err)
	}
	return attempted, nil
}

// Remaining returns the learner's remaining daily capacity.
func (c *Client) Remaining(_ context.Context, learnerID, date string) (int, int, error) {
	var b store.Budget
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(budgetKey(learnerID, date))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &b)
		})
	})
	if err != nil {
		return 0, 0, wrapStorage("Remaining", err)
	}
	return clampRemaining(c.caps.ReviewLimit, b.ReviewsDone), clampRemaining(c.caps.NewLimit, b.NewIntroduced), nil
}

// RecordReview atomically increments the review counter with a cap guard.
func (c *Client) RecordReview(_ context.Context, learnerID, date string) error {
	return c.incrementUpdate(learnerID, date, store.BudgetReview)
}

// RecordNew atomically increments the new-item counter with a cap guard.
func (c *Client) RecordNew(_ context.Context, learnerID, date string) error {
	return c.incrementUpdate(learnerID, date, store.BudgetNew)
}

func (c *Client) incrementUpdate(learnerID, date string, kind store.BudgetKind) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return c.incrementTxn(txn, learnerID, date, kind)
	})
	if err == store.ErrCapacityExceeded {
		return err
	}
	if err != nil {
		return wrapStorage("increment", err)
	}
	return nil
}

func (c *Client) incrementTxn(txn *badger.Txn, learnerID, date string, kind store.BudgetKind) error {
	key := budgetKey(learnerID, date)
	b := store.Budget{LearnerID: learnerID, Date: date}

	item, err := txn.Get(key)
	switch err {
	case nil:
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &b)
		}); err != nil {
			return err
		}
	case badger.ErrKeyNotFound:
	default:
		return err
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

	data, err := json.Marshal(&b)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// CommitReview applies the record upsert, review log append, and budget
// increment in one badger transaction.
func (c *Client) CommitReview(_ context.Context, rec *store.Record, log *store.ReviewLog, kind store.BudgetKind) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(eventKey(log.EventID))
		if err == nil {
			return store.ErrDuplicateEvent
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if err := c.incrementTxn(txn, rec.LearnerID, store.DateKey(log.ReviewedAt), kind); err != nil {
			return err
		}
		if err := upsertRecordTxn(txn, rec, time.Now()); err != nil {
			return err
		}
		if err := txn.Set(eventKey(log.EventID), nil); err != nil {
			return err
		}
		// SQL backends get log IDs from autoincrement columns; here a
		// badger sequence serves, so two events for the same pair never
		// collide even when their grading timestamps are identical.
		stored := *log
		if stored.ID == 0 {
			next, err := c.logSeq.Next()
			if err != nil {
				return err
			}
			stored.ID = int64(next) + 1
		}
		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		return txn.Set(logKey(stored.LearnerID, stored.QuestionID, stored.ID), data)
	})
	if err == store.ErrDuplicateEvent || err == store.ErrCapacityExceeded {
		return err
	}
	if err != nil {
		return wrapStorage("CommitReview", err)
	}
	return nil
}

// ReviewLogs returns the committed review events for the pair in
// chronological order.
func (c *Client) ReviewLogs(_ context.Context, learnerID string, questionID int64) ([]*store.ReviewLog, error) {
	var logs []*store.ReviewLog
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := logPrefix(learnerID, questionID)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var l store.ReviewLog
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &l)
			}); err != nil {
				return err
			}
			logs = append(logs, &l)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage("ReviewLogs", err)
	}
	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].ReviewedAt.Equal(logs[j].ReviewedAt) {
			return logs[i].ReviewedAt.Before(logs[j].ReviewedAt)
		}
		return logs[i].ID < logs[j].ID
	})
	return logs, nil
}

// Close releases the log-ID sequence lease and closes the underlying
// BadgerDB instance.
func (c *Client) Close() error {
	if err := c.logSeq.Release(); err != nil {
		_ = c.db.Close()
		return err
	}
	return c.db.Close()
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

var _ store.Store = (*Client)(nil)
