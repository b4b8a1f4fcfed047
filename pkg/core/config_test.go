package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/core"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("STORE_PROVIDER", "sqlite")
	t.Setenv("TARGET_RETENTION", "0.92")
	t.Setenv("DAILY_REVIEW_LIMIT", "100")
	t.Setenv("DAILY_NEW_LIMIT", "20")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.Store.Provider)
	assert.Equal(t, 0.92, config.Scheduler.TargetRetention)
	assert.Equal(t, 100, config.Scheduler.DailyReviewLimit)
	assert.Equal(t, 20, config.Scheduler.DailyNewLimit)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromEnv_Postgres(t *testing.T) {
	t.Setenv("STORE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "6432")
	t.Setenv("POSTGRES_USER", "recall")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DATABASE", "recall_test")
	t.Setenv("POSTGRES_SSLMODE", "require")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", config.Store.Provider)
	assert.Equal(t, "db.internal", config.Store.Config["host"])
	assert.Equal(t, 6432, config.Store.Config["port"])
	assert.Equal(t, "recall", config.Store.Config["user"])
	assert.Equal(t, "secret", config.Store.Config["password"])
	assert.Equal(t, "recall_test", config.Store.Config["db_name"])
	assert.Equal(t, "require", config.Store.Config["ssl_mode"])
}

func TestLoadConfigFromEnv_Scheduling(t *testing.T) {
	t.Setenv("STORE_PROVIDER", "memory")
	t.Setenv("TARGET_RETENTION", "0.85")
	t.Setenv("DAILY_REVIEW_LIMIT", "50")
	t.Setenv("DAILY_NEW_LIMIT", "5")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 0.85, config.Scheduler.TargetRetention)
	assert.Equal(t, 50, config.Scheduler.DailyReviewLimit)
	assert.Equal(t, 5, config.Scheduler.DailyNewLimit)
}

func TestLoadConfigFromEnv_BadNumbers(t *testing.T) {
	t.Setenv("STORE_PROVIDER", "memory")
	t.Setenv("TARGET_RETENTION", "not-a-number")

	_, err := core.LoadConfigFromEnv()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	t.Setenv("TARGET_RETENTION", "0.92")
	t.Setenv("DAILY_REVIEW_LIMIT", "lots")
	_, err = core.LoadConfigFromEnv()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	yaml := `
store:
  provider: badger
  config:
    data_dir: /var/lib/recall
    sync_writes: true
scheduler:
  target_retention: 0.9
  daily_review_limit: 80
  daily_new_limit: 15
logging:
  level: debug
  pretty: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	config, err := core.LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "badger", config.Store.Provider)
	assert.Equal(t, "/var/lib/recall", config.Store.Config["data_dir"])
	assert.Equal(t, true, config.Store.Config["sync_writes"])
	assert.Equal(t, 0.9, config.Scheduler.TargetRetention)
	assert.Equal(t, 80, config.Scheduler.DailyReviewLimit)
	assert.Equal(t, 15, config.Scheduler.DailyNewLimit)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.True(t, config.Logging.Pretty)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	_, err := core.LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := &core.Config{
		Store:     core.StoreConfig{Provider: "memory"},
		Scheduler: core.DefaultSchedulerConfig(),
	}
	assert.NoError(t, valid.Validate())

	noProvider := &core.Config{Scheduler: core.DefaultSchedulerConfig()}
	assert.ErrorIs(t, noProvider.Validate(), core.ErrInvalidConfig)

	badRetention := &core.Config{
		Store:     core.StoreConfig{Provider: "memory"},
		Scheduler: core.SchedulerConfig{TargetRetention: 1.2, DailyReviewLimit: 10, DailyNewLimit: 2},
	}
	assert.ErrorIs(t, badRetention.Validate(), core.ErrInvalidConfig)

	negativeLimit := &core.Config{
		Store:     core.StoreConfig{Provider: "memory"},
		Scheduler: core.SchedulerConfig{TargetRetention: 0.92, DailyReviewLimit: -1, DailyNewLimit: 2},
	}
	assert.ErrorIs(t, negativeLimit.Validate(), core.ErrInvalidConfig)
}

func TestDefaultSchedulerConfig(t *testing.T) {
	c := core.DefaultSchedulerConfig()
	assert.Equal(t, 0.92, c.TargetRetention)
	assert.Equal(t, 100, c.DailyReviewLimit)
	assert.Equal(t, 20, c.DailyNewLimit)
}
