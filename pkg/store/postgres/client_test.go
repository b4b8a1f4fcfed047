package postgres_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/retention"
	"github.com/recallhq/recall-go/pkg/store"
	postgresStore "github.com/recallhq/recall-go/pkg/store/postgres"
)

func setupPostgresTest(t *testing.T) store.Store {
	t.Helper()

	// Load .env file from project root
	envPath := filepath.Join("..", "..", "..", ".env")
	_ = godotenv.Load(envPath)

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "127.0.0.1"
	}

	portStr := os.Getenv("POSTGRES_PORT")
	if portStr == "" {
		portStr = "5432"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: invalid POSTGRES_PORT: %s", portStr)
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		t.Skip("Skipping PostgreSQL test: POSTGRES_PASSWORD not set")
	}

	dbName := os.Getenv("POSTGRES_DATABASE")
	if dbName == "" {
		dbName = "recall_test"
	}

	st, err := postgresStore.NewClient(&postgresStore.Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  os.Getenv("POSTGRES_SSLMODE"),
		Caps:     store.Caps{ReviewLimit: 3, NewLimit: 2},
	})
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: cannot connect: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPostgresClient_RoundTrip(t *testing.T) {
	st := setupPostgresTest(t)
	ctx := context.Background()
	learner := fmt.Sprintf("pg_learner_%d", time.Now().UnixNano())

	due := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	reviewed := due.Add(-48 * time.Hour)
	mem := retention.MemoryState{
		Stability:   3.3,
		Difficulty:  6.1,
		State:       retention.Review,
		Due:         due,
		LapseCount:  2,
		ReviewCount: 7,
		Streak:      1,
		LastReview:  &reviewed,
	}
	rec := &store.Record{LearnerID: learner, QuestionID: 1, Memory: mem}
	require.NoError(t, st.UpsertRecord(ctx, rec))

	got, err := st.GetRecord(ctx, learner, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.3, got.Memory.Stability)
	assert.Equal(t, retention.Review, got.Memory.State)
	assert.True(t, got.Memory.Due.Equal(due))
	assert.Equal(t, 2, got.Memory.LapseCount)

	_, err = st.GetRecord(ctx, learner, 404)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestPostgresClient_CommitReview(t *testing.T) {
	st := setupPostgresTest(t)
	ctx := context.Background()
	learner := fmt.Sprintf("pg_commit_%d", time.Now().UnixNano())

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	reviewed := now
	rec := &store.Record{
		LearnerID:  learner,
		QuestionID: 1,
		Memory: retention.MemoryState{
			Stability: 2.5, Difficulty: 5.5, State: retention.Review,
			Due: now.Add(72 * time.Hour), ReviewCount: 1, Streak: 1, LastReview: &reviewed,
		},
	}
	eventID := fmt.Sprintf("evt_%s", learner)
	logEntry := &store.ReviewLog{
		EventID: eventID, LearnerID: learner, QuestionID: 1,
		Rating: retention.Good, ReviewedAt: now,
	}

	require.NoError(t, st.CommitReview(ctx, rec, logEntry, store.BudgetNew))
	assert.ErrorIs(t, st.CommitReview(ctx, rec, logEntry, store.BudgetNew), store.ErrDuplicateEvent)

	logs, err := st.ReviewLogs(ctx, learner, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, eventID, logs[0].EventID)

	_, newLeft, err := st.Remaining(ctx, learner, store.DateKey(now))
	require.NoError(t, err)
	assert.Equal(t, 1, newLeft)
}
