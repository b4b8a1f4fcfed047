package mysql_test

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
	mysqlStore "github.com/recallhq/recall-go/pkg/store/mysql"
)

func setupMySQLTest(t *testing.T) store.Store {
	t.Helper()

	// Load .env file from project root
	envPath := filepath.Join("..", "..", "..", ".env")
	_ = godotenv.Load(envPath)

	host := os.Getenv("MYSQL_HOST")
	if host == "" {
		host = "127.0.0.1"
	}

	portStr := os.Getenv("MYSQL_PORT")
	if portStr == "" {
		portStr = "3306"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Skipf("Skipping MySQL test: invalid MYSQL_PORT: %s", portStr)
	}

	user := os.Getenv("MYSQL_USER")
	if user == "" {
		user = "root"
	}

	password := os.Getenv("MYSQL_PASSWORD")
	if password == "" {
		t.Skip("Skipping MySQL test: MYSQL_PASSWORD not set")
	}

	dbName := os.Getenv("MYSQL_DATABASE")
	if dbName == "" {
		dbName = "recall_test"
	}

	st, err := mysqlStore.NewClient(&mysqlStore.Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbName,
		Caps:     store.Caps{ReviewLimit: 3, NewLimit: 2},
	})
	if err != nil {
		t.Skipf("Skipping MySQL test: cannot connect: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMySQLClient_RoundTrip(t *testing.T) {
	st := setupMySQLTest(t)
	ctx := context.Background()
	learner := fmt.Sprintf("my_learner_%d", time.Now().UnixNano())

	due := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	reviewed := due.Add(-48 * time.Hour)
	mem := retention.MemoryState{
		Stability:   1.9,
		Difficulty:  7.0,
		State:       retention.Relearning,
		Due:         due,
		LapseCount:  3,
		ReviewCount: 9,
		LastReview:  &reviewed,
	}
	rec := &store.Record{LearnerID: learner, QuestionID: 1, Memory: mem}
	require.NoError(t, st.UpsertRecord(ctx, rec))

	got, err := st.GetRecord(ctx, learner, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.9, got.Memory.Stability)
	assert.Equal(t, retention.Relearning, got.Memory.State)
	assert.True(t, got.Memory.Due.Equal(due))

	_, err = st.GetRecord(ctx, learner, 404)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestMySQLClient_BudgetCaps(t *testing.T) {
	st := setupMySQLTest(t)
	ctx := context.Background()
	learner := fmt.Sprintf("my_budget_%d", time.Now().UnixNano())
	date := "2026-03-02"

	for i := 0; i < 3; i++ {
		require.NoError(t, st.RecordReview(ctx, learner, date))
	}
	assert.ErrorIs(t, st.RecordReview(ctx, learner, date), store.ErrCapacityExceeded)

	reviewsLeft, newLeft, err := st.Remaining(ctx, learner, date)
	require.NoError(t, err)
	assert.Zero(t, reviewsLeft)
	assert.Equal(t, 2, newLeft)
}
