package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains the complete configuration for a scheduler client.
//
// It includes settings for:
//   - Store backend (where memory records, budgets, and logs live)
//   - Scheduler behavior (retention target, daily limits)
//   - Logging
//
// Example:
//
//	config := &core.Config{
//	    Store: core.StoreConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./recall.db",
//	        },
//	    },
//	    Scheduler: core.SchedulerConfig{
//	        TargetRetention:  0.92,
//	        DailyReviewLimit: 100,
//	        DailyNewLimit:    20,
//	    },
//	}
type Config struct {
	// Store contains store backend configuration.
	Store StoreConfig `json:"store" yaml:"store"`

	// Scheduler contains scheduling behavior configuration.
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`

	// Logging contains logging configuration.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// StoreConfig contains configuration for the store backend.
//
// Supported providers: sqlite, postgres, mysql, badger, memory
//
// Example:
//
//	storeConfig := core.StoreConfig{
//	    Provider: "postgres",
//	    Config: map[string]interface{}{
//	        "host":    "localhost",
//	        "port":    5432,
//	        "user":    "recall",
//	        "db_name": "recall",
//	    },
//	}
type StoreConfig struct {
	// Provider is the store backend name (sqlite, postgres, mysql, badger, memory).
	Provider string `json:"provider" yaml:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path
	// For PostgreSQL: host, port, user, password, db_name, ssl_mode
	// For MySQL: host, port, user, password, db_name
	// For Badger: data_dir, in_memory, sync_writes
	Config map[string]interface{} `json:"config" yaml:"config"`
}

// SchedulerConfig contains scheduling behavior configuration.
//
// Zero values are replaced by defaults when the client is created:
// a 0.92 retention target, 100 reviews per day, and 20 new
// introductions per day.
type SchedulerConfig struct {
	// TargetRetention is the recall probability the model schedules
	// for. Must be in (0, 1).
	TargetRetention float64 `json:"target_retention" yaml:"target_retention"`

	// DailyReviewLimit caps graded reviews per learner per UTC day.
	DailyReviewLimit int `json:"daily_review_limit" yaml:"daily_review_limit"`

	// DailyNewLimit caps new introductions per learner per UTC day.
	DailyNewLimit int `json:"daily_new_limit" yaml:"daily_new_limit"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum level to emit (trace, debug, info, warn, error).
	// Empty means "info".
	Level string `json:"level" yaml:"level"`

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool `json:"pretty" yaml:"pretty"`
}

// DefaultSchedulerConfig returns the stock scheduling parameters.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TargetRetention:  0.92,
		DailyReviewLimit: 100,
		DailyNewLimit:    20,
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - STORE_PROVIDER (sqlite, postgres, mysql, badger, memory)
//   - SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, etc.
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE
//   - BADGER_DIR, BADGER_IN_MEMORY, BADGER_SYNC_WRITES
//   - TARGET_RETENTION, DAILY_REVIEW_LIMIT, DAILY_NEW_LIMIT
//   - LOG_LEVEL, LOG_PRETTY
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		// Fall back to godotenv's default current-directory behavior
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("STORE_PROVIDER", "sqlite")

	// Build different configurations based on provider
	storeConfig := make(map[string]interface{})

	switch provider {
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path": getEnvOrDefault("SQLITE_PATH", "./recall.db"),
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))

		storeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":     port,
			"user":     getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password": os.Getenv("POSTGRES_PASSWORD"),
			"db_name":  getEnvOrDefault("POSTGRES_DATABASE", "recall"),
			"ssl_mode": getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))

		storeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("MYSQL_HOST", "localhost"),
			"port":     port,
			"user":     getEnvOrDefault("MYSQL_USER", "root"),
			"password": os.Getenv("MYSQL_PASSWORD"),
			"db_name":  getEnvOrDefault("MYSQL_DATABASE", "recall"),
		}
	case "badger":
		storeConfig = map[string]interface{}{
			"data_dir":    getEnvOrDefault("BADGER_DIR", "./recall-badger"),
			"in_memory":   os.Getenv("BADGER_IN_MEMORY") == "true",
			"sync_writes": os.Getenv("BADGER_SYNC_WRITES") == "true",
		}
	}

	target, err := strconv.ParseFloat(getEnvOrDefault("TARGET_RETENTION", "0.92"), 64)
	if err != nil {
		return nil, NewSchedulerError("LoadConfigFromEnv",
			fmt.Errorf("%w: TARGET_RETENTION: %v", ErrInvalidConfig, err))
	}
	reviewLimit, err := strconv.Atoi(getEnvOrDefault("DAILY_REVIEW_LIMIT", "100"))
	if err != nil {
		return nil, NewSchedulerError("LoadConfigFromEnv",
			fmt.Errorf("%w: DAILY_REVIEW_LIMIT: %v", ErrInvalidConfig, err))
	}
	newLimit, err := strconv.Atoi(getEnvOrDefault("DAILY_NEW_LIMIT", "20"))
	if err != nil {
		return nil, NewSchedulerError("LoadConfigFromEnv",
			fmt.Errorf("%w: DAILY_NEW_LIMIT: %v", ErrInvalidConfig, err))
	}

	config := &Config{
		Store: StoreConfig{
			Provider: provider,
			Config:   storeConfig,
		},
		Scheduler: SchedulerConfig{
			TargetRetention:  target,
			DailyReviewLimit: reviewLimit,
			DailyNewLimit:    newLimit,
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Pretty: os.Getenv("LOG_PRETTY") == "true",
		},
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromFile loads configuration from a YAML file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewSchedulerError("LoadConfigFromFile", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, NewSchedulerError("LoadConfigFromFile", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that all required fields are set:
//   - Store provider must be specified
//   - Retention target must be in (0, 1)
//   - Daily limits must not be negative
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Store.Provider == "" {
		return NewSchedulerError("Validate",
			fmt.Errorf("%w: store provider is required", ErrInvalidConfig))
	}
	if c.Scheduler.TargetRetention <= 0 || c.Scheduler.TargetRetention >= 1 {
		return NewSchedulerError("Validate",
			fmt.Errorf("%w: target retention must be in (0, 1)", ErrInvalidConfig))
	}
	if c.Scheduler.DailyReviewLimit < 0 || c.Scheduler.DailyNewLimit < 0 {
		return NewSchedulerError("Validate",
			fmt.Errorf("%w: daily limits must not be negative", ErrInvalidConfig))
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	// First check the current directory
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	// Check project root directory (search upward)
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
