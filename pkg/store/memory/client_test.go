package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/retention"
	"github.com/recallhq/recall-go/pkg/store"
	"github.com/recallhq/recall-go/pkg/store/memory"
)

func newTestStore() *memory.Client {
	return memory.NewClient(&memory.Config{
		Caps: store.Caps{ReviewLimit: 3, NewLimit: 2},
	})
}

func reviewedRecord(learnerID string, questionID int64, due, reviewed time.Time) *store.Record {
	mem := retention.MemoryState{
		Stability:   2.5,
		Difficulty:  5.5,
		State:       retention.Review,
		Due:         due,
		ReviewCount: 1,
		Streak:      1,
		LastReview:  &reviewed,
	}
	return &store.Record{LearnerID: learnerID, QuestionID: questionID, Memory: mem}
}

func TestClient_GetRecord_NotFound(t *testing.T) {
	st := newTestStore()
	defer st.Close()

	_, err := st.GetRecord(context.Background(), "learner", 1)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestClient_UpsertAndGet(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()

	now := time.Now()
	rec := reviewedRecord("learner", 7, now.Add(48*time.Hour), now)
	require.NoError(t, st.UpsertRecord(ctx, rec))

	got, err := st.GetRecord(ctx, "learner", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.QuestionID)
	assert.Equal(t, retention.Review, got.Memory.State)
	assert.Equal(t, 2.5, got.Memory.Stability)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestClient_Upsert_PreservesCreatedAt(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()

	now := time.Now()
	rec := reviewedRecord("learner", 7, now.Add(48*time.Hour), now)
	require.NoError(t, st.UpsertRecord(ctx, rec))
	first, err := st.GetRecord(ctx, "learner", 7)
	require.NoError(t, err)

	rec.Memory.Stability = 9.9
	require.NoError(t, st.UpsertRecord(ctx, rec))
	second, err := st.GetRecord(ctx, "learner", 7)
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 9.9, second.Memory.Stability)
}

func TestClient_DueBefore_OrderAndFiltering(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	reviewed := now.Add(-72 * time.Hour)

	// Due yesterday, due an hour ago, due tomorrow, and a New record.
	require.NoError(t, st.UpsertRecord(ctx, reviewedRecord("learner", 2, now.Add(-24*time.Hour), reviewed)))
	require.NoError(t, st.UpsertRecord(ctx, reviewedRecord("learner", 1, now.Add(-time.Hour), reviewed)))
	require.NoError(t, st.UpsertRecord(ctx, reviewedRecord("learner", 3, now.Add(24*time.Hour), reviewed)))
	require.NoError(t, st.UpsertRecord(ctx, &store.Record{
		LearnerID: "learner", QuestionID: 4, Memory: retention.NewMemoryState(),
	}))
	// Same due as question 2: tie broken by question ID.
	require.NoError(t, st.UpsertRecord(ctx, reviewedRecord("learner", 9, now.Add(-24*time.Hour), reviewed)))

	due, err := st.DueBefore(ctx, "learner", now)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, int64(2), due[0].QuestionID)
	assert.Equal(t, int64(9), due[1].QuestionID)
	assert.Equal(t, int64(1), due[2].QuestionID)
}

func TestClient_AttemptedQuestions(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, st.UpsertRecord(ctx, reviewedRecord("learner", 1, now, now)))
	require.NoError(t, st.UpsertRecord(ctx, &store.Record{
		LearnerID: "learner", QuestionID: 2, Memory: retention.NewMemoryState(),
	}))

	attempted, err := st.AttemptedQuestions(ctx, "learner")
	require.NoError(t, err)
	assert.True(t, attempted[1])
	assert.False(t, attempted[2])
}

func TestClient_BudgetCaps(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()
	date := "2026-03-02"

	reviewsLeft, newLeft, err := st.Remaining(ctx, "learner", date)
	require.NoError(t, err)
	assert.Equal(t, 3, reviewsLeft)
	assert.Equal(t, 2, newLeft)

	for i := 0; i < 3; i++ {
		require.NoError(t, st.RecordReview(ctx, "learner", date))
	}
	assert.ErrorIs(t, st.RecordReview(ctx, "learner", date), store.ErrCapacityExceeded)

	for i := 0; i < 2; i++ {
		require.NoError(t, st.RecordNew(ctx, "learner", date))
	}
	assert.ErrorIs(t, st.RecordNew(ctx, "learner", date), store.ErrCapacityExceeded)

	reviewsLeft, newLeft, err = st.Remaining(ctx, "learner", date)
	require.NoError(t, err)
	assert.Zero(t, reviewsLeft)
	assert.Zero(t, newLeft)

	// Counters are per date: the next day starts fresh.
	reviewsLeft, newLeft, err = st.Remaining(ctx, "learner", "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, 3, reviewsLeft)
	assert.Equal(t, 2, newLeft)
}

func TestClient_CommitReview(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	rec := reviewedRecord("learner", 1, now.Add(48*time.Hour), now)
	logEntry := &store.ReviewLog{
		EventID: "evt-1", LearnerID: "learner", QuestionID: 1,
		Rating: retention.Good, ReviewedAt: now,
	}

	require.NoError(t, st.CommitReview(ctx, rec, logEntry, store.BudgetReview))

	got, err := st.GetRecord(ctx, "learner", 1)
	require.NoError(t, err)
	assert.Equal(t, retention.Review, got.Memory.State)

	logs, err := st.ReviewLogs(ctx, "learner", 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "evt-1", logs[0].EventID)
	assert.Equal(t, retention.Good, logs[0].Rating)

	reviewsLeft, _, err := st.Remaining(ctx, "learner", store.DateKey(now))
	require.NoError(t, err)
	assert.Equal(t, 2, reviewsLeft)
}

func TestClient_CommitReview_SameTimestampLogsKeepCommitOrder(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()

	// Batch imports share one grading timestamp; commit-order IDs must
	// keep the replay order deterministic across reads.
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i, evt := range []string{"evt-a", "evt-b", "evt-c"} {
		rec := reviewedRecord("learner", 1, at.Add(48*time.Hour), at)
		logEntry := &store.ReviewLog{
			EventID: evt, LearnerID: "learner", QuestionID: 1,
			Rating: retention.Good, ReviewedAt: at,
		}
		require.NoError(t, st.CommitReview(ctx, rec, logEntry, store.BudgetReview), "commit %d", i)
	}

	first, err := st.ReviewLogs(ctx, "learner", 1)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, []string{"evt-a", "evt-b", "evt-c"},
		[]string{first[0].EventID, first[1].EventID, first[2].EventID})
	assert.Less(t, first[0].ID, first[1].ID)
	assert.Less(t, first[1].ID, first[2].ID)

	second, err := st.ReviewLogs(ctx, "learner", 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClient_CommitReview_DuplicateEvent(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()

	now := time.Now()
	rec := reviewedRecord("learner", 1, now.Add(48*time.Hour), now)
	logEntry := &store.ReviewLog{
		EventID: "evt-dup", LearnerID: "learner", QuestionID: 1,
		Rating: retention.Good, ReviewedAt: now,
	}

	require.NoError(t, st.CommitReview(ctx, rec, logEntry, store.BudgetReview))
	err := st.CommitReview(ctx, rec, logEntry, store.BudgetReview)
	assert.ErrorIs(t, err, store.ErrDuplicateEvent)

	// The duplicate must not consume budget or append a log.
	logs, err := st.ReviewLogs(ctx, "learner", 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	reviewsLeft, _, err := st.Remaining(ctx, "learner", store.DateKey(now))
	require.NoError(t, err)
	assert.Equal(t, 2, reviewsLeft)
}

func TestClient_CommitReview_CapacityLeavesNoPartialState(t *testing.T) {
	st := newTestStore()
	defer st.Close()
	ctx := context.Background()
	now := time.Now()

	// Fill the new-item budget (cap 2).
	for i := int64(1); i <= 2; i++ {
		rec := reviewedRecord("learner", i, now.Add(48*time.Hour), now)
		logEntry := &store.ReviewLog{
			EventID: "evt-" + string(rune('a'+i)), LearnerID: "learner",
			QuestionID: i, Rating: retention.Good, ReviewedAt: now,
		}
		require.NoError(t, st.CommitReview(ctx, rec, logEntry, store.BudgetNew))
	}

	rec := reviewedRecord("learner", 3, now.Add(48*time.Hour), now)
	logEntry := &store.ReviewLog{
		EventID: "evt-over", LearnerID: "learner", QuestionID: 3,
		Rating: retention.Good, ReviewedAt: now,
	}
	err := st.CommitReview(ctx, rec, logEntry, store.BudgetNew)
	assert.ErrorIs(t, err, store.ErrCapacityExceeded)

	// Nothing from the failed commit is visible.
	_, err = st.GetRecord(ctx, "learner", 3)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
	logs, err := st.ReviewLogs(ctx, "learner", 3)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestClient_Close(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Close())

	_, err := st.GetRecord(context.Background(), "learner", 1)
	assert.ErrorIs(t, err, store.ErrClosed)
	err = st.RecordReview(context.Background(), "learner", "2026-03-02")
	assert.ErrorIs(t, err, store.ErrClosed)
}
