package badger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/retention"
	"github.com/recallhq/recall-go/pkg/store"
	badgerStore "github.com/recallhq/recall-go/pkg/store/badger"
)

func setupBadgerTest(t *testing.T) store.Store {
	t.Helper()
	st, err := badgerStore.NewClient(&badgerStore.Config{
		InMemory: true,
		Caps:     store.Caps{ReviewLimit: 3, NewLimit: 2},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func badgerRecord(learnerID string, questionID int64, due, reviewed time.Time) *store.Record {
	mem := retention.MemoryState{
		Stability:   2.2,
		Difficulty:  5.0,
		State:       retention.Review,
		Due:         due,
		ReviewCount: 3,
		Streak:      3,
		LastReview:  &reviewed,
	}
	return &store.Record{LearnerID: learnerID, QuestionID: questionID, Memory: mem}
}

func TestBadgerClient_UpsertAndGet(t *testing.T) {
	st := setupBadgerTest(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	reviewed := due.Add(-48 * time.Hour)
	require.NoError(t, st.UpsertRecord(ctx, badgerRecord("learner", 42, due, reviewed)))

	got, err := st.GetRecord(ctx, "learner", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.QuestionID)
	assert.Equal(t, 2.2, got.Memory.Stability)
	assert.Equal(t, retention.Review, got.Memory.State)
	assert.True(t, got.Memory.Due.Equal(due))

	_, err = st.GetRecord(ctx, "learner", 43)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestBadgerClient_DueBefore(t *testing.T) {
	st := setupBadgerTest(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	reviewed := now.Add(-96 * time.Hour)

	require.NoError(t, st.UpsertRecord(ctx, badgerRecord("learner", 2, now.Add(-24*time.Hour), reviewed)))
	require.NoError(t, st.UpsertRecord(ctx, badgerRecord("learner", 1, now.Add(-time.Hour), reviewed)))
	require.NoError(t, st.UpsertRecord(ctx, badgerRecord("learner", 3, now.Add(time.Hour), reviewed)))
	require.NoError(t, st.UpsertRecord(ctx, &store.Record{
		LearnerID: "learner", QuestionID: 4, Memory: retention.NewMemoryState(),
	}))

	due, err := st.DueBefore(ctx, "learner", now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(2), due[0].QuestionID)
	assert.Equal(t, int64(1), due[1].QuestionID)
}

func TestBadgerClient_CommitReview_LogsAccumulate(t *testing.T) {
	st := setupBadgerTest(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	// Three commits for the same pair on separate days must keep
	// three distinct log entries.
	for i := 0; i < 3; i++ {
		at := now.Add(time.Duration(i) * 24 * time.Hour)
		rec := badgerRecord("learner", 1, at.Add(72*time.Hour), at)
		logEntry := &store.ReviewLog{
			EventID: fmt.Sprintf("evt-%d", i), LearnerID: "learner",
			QuestionID: 1, Rating: retention.Good, ReviewedAt: at,
		}
		require.NoError(t, st.CommitReview(ctx, rec, logEntry, store.BudgetReview))
	}

	logs, err := st.ReviewLogs(ctx, "learner", 1)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.True(t, logs[0].ReviewedAt.Before(logs[1].ReviewedAt))
	assert.True(t, logs[1].ReviewedAt.Before(logs[2].ReviewedAt))
}

func TestBadgerClient_CommitReview_SameTimestampKeepsBothLogs(t *testing.T) {
	st := setupBadgerTest(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	// Batch imports grade distinct events with one shared timestamp;
	// both log entries must survive.
	for i := 0; i < 2; i++ {
		rec := badgerRecord("learner", 1, at.Add(72*time.Hour), at)
		logEntry := &store.ReviewLog{
			EventID: fmt.Sprintf("evt-same-%d", i), LearnerID: "learner",
			QuestionID: 1, Rating: retention.Good, ReviewedAt: at,
		}
		require.NoError(t, st.CommitReview(ctx, rec, logEntry, store.BudgetReview))
	}

	logs, err := st.ReviewLogs(ctx, "learner", 1)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.NotEqual(t, logs[0].ID, logs[1].ID)
	assert.True(t, logs[0].ReviewedAt.Equal(logs[1].ReviewedAt))
}

func TestBadgerClient_CommitReview_DuplicateAndCaps(t *testing.T) {
	st := setupBadgerTest(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	rec := badgerRecord("learner", 1, now.Add(72*time.Hour), now)
	logEntry := &store.ReviewLog{
		EventID: "evt-dup", LearnerID: "learner", QuestionID: 1,
		Rating: retention.Good, ReviewedAt: now,
	}
	require.NoError(t, st.CommitReview(ctx, rec, logEntry, store.BudgetNew))
	assert.ErrorIs(t, st.CommitReview(ctx, rec, logEntry, store.BudgetNew), store.ErrDuplicateEvent)

	// New-item cap is 2; the third introduction fails and writes nothing.
	rec2 := badgerRecord("learner", 2, now.Add(72*time.Hour), now)
	log2 := &store.ReviewLog{
		EventID: "evt-2", LearnerID: "learner", QuestionID: 2,
		Rating: retention.Good, ReviewedAt: now,
	}
	require.NoError(t, st.CommitReview(ctx, rec2, log2, store.BudgetNew))

	rec3 := badgerRecord("learner", 3, now.Add(72*time.Hour), now)
	log3 := &store.ReviewLog{
		EventID: "evt-3", LearnerID: "learner", QuestionID: 3,
		Rating: retention.Good, ReviewedAt: now,
	}
	assert.ErrorIs(t, st.CommitReview(ctx, rec3, log3, store.BudgetNew), store.ErrCapacityExceeded)

	_, err := st.GetRecord(ctx, "learner", 3)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	_, newLeft, err := st.Remaining(ctx, "learner", store.DateKey(now))
	require.NoError(t, err)
	assert.Zero(t, newLeft)
}
