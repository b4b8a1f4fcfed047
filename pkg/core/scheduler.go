package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"

	"github.com/recallhq/recall-go/pkg/retention"
	"github.com/recallhq/recall-go/pkg/store"
	"github.com/recallhq/recall-go/pkg/store/badger"
	"github.com/recallhq/recall-go/pkg/store/memory"
	"github.com/recallhq/recall-go/pkg/store/mysql"
	"github.com/recallhq/recall-go/pkg/store/postgres"
	"github.com/recallhq/recall-go/pkg/store/sqlite"
)

// Client is the session allocator. It owns a retention model, a store
// backend, and a question directory, and exposes the two operations a
// study frontend needs: build today's session and apply a rating.
//
// Example:
//
//	config, _ := core.LoadConfigFromEnv()
//	directory := core.NewStaticDirectory(questionIDs)
//	client, err := core.NewClient(config, directory)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	session, _ := client.BuildSession(ctx, "learner_001", time.Now())
//	for _, qid := range session.QuestionIDs {
//	    // present the question, collect the answer quality
//	    snap, _ := client.ApplyRating(ctx, "learner_001", qid, retention.Good)
//	    fmt.Println("next due:", snap.Memory.Due)
//	}
//
// All methods are safe for concurrent use. Grading events for the
// same learner/question pair are serialized internally; the store
// backend keeps budget counters atomic across processes.
type Client struct {
	store      store.Store
	model      *retention.Model
	questions  QuestionDirectory
	scheduler  SchedulerConfig
	logger     zerolog.Logger
	node       *snowflake.Node
	locks      pairLocks
	ownedStore bool
}

// NewClient creates a client from a configuration, opening the store
// backend named by config.Store.Provider.
//
// The directory supplies the active question pool; pass a
// StaticDirectory when the pool is fixed.
func NewClient(config *Config, directory QuestionDirectory) (*Client, error) {
	if config == nil {
		return nil, NewSchedulerError("NewClient", ErrInvalidConfig)
	}
	applySchedulerDefaults(&config.Scheduler)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if directory == nil {
		return nil, NewSchedulerError("NewClient",
			fmt.Errorf("%w: question directory is required", ErrInvalidConfig))
	}

	st, err := initStore(config)
	if err != nil {
		return nil, NewSchedulerError("NewClient", err)
	}

	client, err := NewClientWithStore(st, directory, config.Scheduler)
	if err != nil {
		st.Close()
		return nil, err
	}
	client.ownedStore = true
	client.logger = newLogger(config.Logging)
	return client, nil
}

// NewClientWithStore creates a client over an already-open store.
// The caller keeps ownership of the store; Close will not close it.
//
// Useful for tests and for sharing one store between clients.
func NewClientWithStore(st store.Store, directory QuestionDirectory, scheduler SchedulerConfig) (*Client, error) {
	if st == nil {
		return nil, NewSchedulerError("NewClientWithStore",
			fmt.Errorf("%w: store is required", ErrInvalidConfig))
	}
	if directory == nil {
		return nil, NewSchedulerError("NewClientWithStore",
			fmt.Errorf("%w: question directory is required", ErrInvalidConfig))
	}
	applySchedulerDefaults(&scheduler)

	params := retention.DefaultParams()
	params.TargetRetention = scheduler.TargetRetention
	model, err := retention.NewModel(params)
	if err != nil {
		return nil, NewSchedulerError("NewClientWithStore", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewSchedulerError("NewClientWithStore", err)
	}

	return &Client{
		store:     st,
		model:     model,
		questions: directory,
		scheduler: scheduler,
		logger:    zerolog.Nop(),
		node:      node,
	}, nil
}

// applySchedulerDefaults fills zero fields with stock values.
func applySchedulerDefaults(c *SchedulerConfig) {
	defaults := DefaultSchedulerConfig()
	if c.TargetRetention == 0 {
		c.TargetRetention = defaults.TargetRetention
	}
	if c.DailyReviewLimit == 0 {
		c.DailyReviewLimit = defaults.DailyReviewLimit
	}
	if c.DailyNewLimit == 0 {
		c.DailyNewLimit = defaults.DailyNewLimit
	}
}

// initStore initializes the store backend based on configuration.
func initStore(cfg *Config) (store.Store, error) {
	caps := store.Caps{
		ReviewLimit: cfg.Scheduler.DailyReviewLimit,
		NewLimit:    cfg.Scheduler.DailyNewLimit,
	}

	switch cfg.Store.Provider {
	case "sqlite":
		return sqlite.NewClient(&sqlite.Config{
			DBPath: stringValue(cfg.Store.Config, "db_path", "./recall.db"),
			Caps:   caps,
		})
	case "postgres":
		return postgres.NewClient(&postgres.Config{
			Host:     stringValue(cfg.Store.Config, "host", "localhost"),
			Port:     intValue(cfg.Store.Config, "port", 5432),
			User:     stringValue(cfg.Store.Config, "user", "postgres"),
			Password: stringValue(cfg.Store.Config, "password", ""),
			DBName:   stringValue(cfg.Store.Config, "db_name", "recall"),
			SSLMode:  stringValue(cfg.Store.Config, "ssl_mode", "disable"),
			Caps:     caps,
		})
	case "mysql":
		return mysql.NewClient(&mysql.Config{
			Host:     stringValue(cfg.Store.Config, "host", "localhost"),
			Port:     intValue(cfg.Store.Config, "port", 3306),
			User:     stringValue(cfg.Store.Config, "user", "root"),
			Password: stringValue(cfg.Store.Config, "password", ""),
			DBName:   stringValue(cfg.Store.Config, "db_name", "recall"),
			Caps:     caps,
		})
	case "badger":
		return badger.NewClient(&badger.Config{
			DataDir:    stringValue(cfg.Store.Config, "data_dir", "./recall-badger"),
			InMemory:   boolValue(cfg.Store.Config, "in_memory", false),
			SyncWrites: boolValue(cfg.Store.Config, "sync_writes", false),
			Caps:       caps,
		})
	case "memory":
		return memory.NewClient(&memory.Config{Caps: caps}), nil
	default:
		return nil, fmt.Errorf("%w: unsupported store provider: %s",
			ErrInvalidConfig, cfg.Store.Provider)
	}
}

// newLogger builds the client logger from logging configuration.
func newLogger(cfg LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("component", "recall").Logger()
}

// WithLogger replaces the client logger. Returns the client for chaining.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// BuildSession assembles the study queue for a learner at the given
// instant.
//
// The queue is due reviews first, ordered by due time (oldest first,
// question ID breaking ties), then new questions in directory order,
// each part trimmed to the remaining daily budget. New questions are
// only introduced when the session's due count stays under the
// configured daily review limit; a learner whose queue is saturated
// with overdue reviews gets no new material.
//
// Building a session reserves nothing. Budgets are consumed by
// ApplyRating, so building twice without grading returns the same
// queue.
func (c *Client) BuildSession(ctx context.Context, learnerID string, now time.Time, opts ...BuildOption) (*Session, error) {
	const op = "BuildSession"
	if learnerID == "" {
		return nil, NewSchedulerError(op,
			fmt.Errorf("%w: learner id is required", ErrInvalidConfig))
	}
	options := applyBuildOptions(opts)

	reviewsLeft, newLeft, err := c.store.Remaining(ctx, learnerID, store.DateKey(now))
	if err != nil {
		return nil, c.translate(op, err)
	}
	if options.MaxDue > 0 && options.MaxDue < reviewsLeft {
		reviewsLeft = options.MaxDue
	}
	if options.MaxNew > 0 && options.MaxNew < newLeft {
		newLeft = options.MaxNew
	}

	due, err := c.store.DueBefore(ctx, learnerID, now)
	if err != nil {
		return nil, c.translate(op, err)
	}

	if len(due) > reviewsLeft {
		due = due[:reviewsLeft]
	}

	session := &Session{
		LearnerID: learnerID,
		BuiltAt:   now,
		DueCount:  len(due),
	}
	for _, rec := range due {
		session.QuestionIDs = append(session.QuestionIDs, rec.QuestionID)
	}

	// Only introduce new material while the due portion leaves room
	// under the daily review limit.
	if session.DueCount < c.scheduler.DailyReviewLimit && newLeft > 0 {
		fresh, err := c.newCandidates(ctx, learnerID, newLeft)
		if err != nil {
			return nil, c.translate(op, err)
		}
		session.QuestionIDs = append(session.QuestionIDs, fresh...)
		session.NewCount = len(fresh)
	}

	c.logger.Debug().
		Str("learner_id", learnerID).
		Int("due", session.DueCount).
		Int("new", session.NewCount).
		Time("built_at", now).
		Msg("session built")

	return session, nil
}

// newCandidates returns up to limit never-attempted active question
// IDs in directory order.
func (c *Client) newCandidates(ctx context.Context, learnerID string, limit int) ([]int64, error) {
	active, err := c.questions.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	attempted, err := c.store.AttemptedQuestions(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	var out []int64
	for _, id := range active {
		if attempted[id] {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ApplyRating grades one answer and advances the learner's memory of
// the question.
//
// The full effect — updated memory record, appended review log entry,
// incremented budget counter — lands in one store transaction, so a
// failure leaves no partial state. A first attempt consumes
// new-budget; every later attempt consumes review-budget.
//
// Returns ErrInvalidRating for ratings outside Fail..Easy,
// ErrQuestionNotFound for inactive questions, ErrCapacityExceeded when
// the day's budget is spent, and ErrDuplicateEvent when the supplied
// event ID was already applied.
func (c *Client) ApplyRating(ctx context.Context, learnerID string, questionID int64, rating retention.Rating, opts ...ApplyOption) (*MemorySnapshot, error) {
	const op = "ApplyRating"
	if learnerID == "" {
		return nil, NewSchedulerError(op,
			fmt.Errorf("%w: learner id is required", ErrInvalidConfig))
	}
	if !rating.IsValid() {
		return nil, NewSchedulerError(op,
			fmt.Errorf("%w: %d", ErrInvalidRating, int(rating)))
	}

	active, err := c.questions.Active(ctx, questionID)
	if err != nil {
		return nil, c.translate(op, err)
	}
	if !active {
		return nil, NewSchedulerError(op,
			fmt.Errorf("%w: %d", ErrQuestionNotFound, questionID))
	}

	options := applyApplyOptions(opts)
	at := options.At
	if at.IsZero() {
		at = time.Now()
	}
	eventID := options.EventID
	if eventID == "" {
		eventID = c.node.Generate().String()
	}

	unlock := c.locks.lock(learnerID, questionID)
	defer unlock()

	rec, err := c.store.GetRecord(ctx, learnerID, questionID)
	firstAttempt := false
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		firstAttempt = true
		rec = &store.Record{
			LearnerID:  learnerID,
			QuestionID: questionID,
			Memory:     retention.NewMemoryState(),
		}
	case err != nil:
		return nil, c.translate(op, err)
	default:
		firstAttempt = rec.Memory.IsNew()
	}

	recall := c.model.Retrievability(rec.Memory, at)

	updated, err := c.model.Update(rec.Memory, rating, at)
	if err != nil {
		if errors.Is(err, retention.ErrInvalidRating) {
			return nil, NewSchedulerError(op,
				fmt.Errorf("%w: %d", ErrInvalidRating, int(rating)))
		}
		return nil, NewSchedulerError(op, err)
	}
	rec.Memory = updated

	kind := store.BudgetReview
	if firstAttempt {
		kind = store.BudgetNew
	}

	logEntry := &store.ReviewLog{
		EventID:    eventID,
		LearnerID:  learnerID,
		QuestionID: questionID,
		Rating:     rating,
		ReviewedAt: at,
	}

	if err := c.store.CommitReview(ctx, rec, logEntry, kind); err != nil {
		return nil, c.translate(op, err)
	}

	c.logger.Debug().
		Str("learner_id", learnerID).
		Int64("question_id", questionID).
		Str("rating", rating.String()).
		Str("state", updated.State.String()).
		Float64("stability", updated.Stability).
		Float64("difficulty", updated.Difficulty).
		Time("due", updated.Due).
		Bool("first_attempt", firstAttempt).
		Msg("rating applied")

	return &MemorySnapshot{
		LearnerID:      learnerID,
		QuestionID:     questionID,
		Memory:         updated,
		Retrievability: recall,
		FirstAttempt:   firstAttempt,
		EventID:        eventID,
	}, nil
}

// Budget reports the remaining daily capacity for a learner at the
// given instant.
func (c *Client) Budget(ctx context.Context, learnerID string, now time.Time) (*BudgetStatus, error) {
	const op = "Budget"
	date := store.DateKey(now)
	reviewsLeft, newLeft, err := c.store.Remaining(ctx, learnerID, date)
	if err != nil {
		return nil, c.translate(op, err)
	}
	return &BudgetStatus{
		LearnerID:        learnerID,
		Date:             date,
		ReviewsRemaining: reviewsLeft,
		NewRemaining:     newLeft,
	}, nil
}

// Retrievability estimates the learner's current recall probability
// for a question. Returns 0 for questions never attempted.
func (c *Client) Retrievability(ctx context.Context, learnerID string, questionID int64, now time.Time) (float64, error) {
	rec, err := c.store.GetRecord(ctx, learnerID, questionID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, c.translate("Retrievability", err)
	}
	return c.model.Retrievability(rec.Memory, now), nil
}

// History returns the grading events for a learner/question pair in
// review order.
func (c *Client) History(ctx context.Context, learnerID string, questionID int64) ([]*store.ReviewLog, error) {
	logs, err := c.store.ReviewLogs(ctx, learnerID, questionID)
	if err != nil {
		return nil, c.translate("History", err)
	}
	return logs, nil
}

// ReplayHistory recomputes the memory state for a pair by folding its
// review log through the model from scratch. The result matches the
// stored record whenever log and record were written by the same
// model parameters, which makes this a cheap consistency probe and
// the recovery path when a record is lost.
//
// Nothing is written; the caller decides what to do with the result.
func (c *Client) ReplayHistory(ctx context.Context, learnerID string, questionID int64) (retention.MemoryState, error) {
	const op = "ReplayHistory"
	logs, err := c.store.ReviewLogs(ctx, learnerID, questionID)
	if err != nil {
		return retention.MemoryState{}, c.translate(op, err)
	}

	state := retention.NewMemoryState()
	for _, entry := range logs {
		state, err = c.model.Update(state, entry.Rating, entry.ReviewedAt)
		if err != nil {
			return retention.MemoryState{}, NewSchedulerError(op, err)
		}
	}
	return state, nil
}

// Close releases the client. The store is closed only when the client
// opened it (NewClient); stores passed to NewClientWithStore stay open.
func (c *Client) Close() error {
	if !c.ownedStore {
		return nil
	}
	if err := c.store.Close(); err != nil {
		return NewSchedulerError("Close", err)
	}
	return nil
}

// translate maps store sentinel errors onto the client's error
// vocabulary so callers only match against one package.
func (c *Client) translate(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrCapacityExceeded):
		return NewSchedulerError(op, fmt.Errorf("%w: %v", ErrCapacityExceeded, err))
	case errors.Is(err, store.ErrDuplicateEvent):
		return NewSchedulerError(op, fmt.Errorf("%w: %v", ErrDuplicateEvent, err))
	case errors.Is(err, store.ErrRecordNotFound):
		return NewSchedulerError(op, err)
	case errors.Is(err, store.ErrStorageUnavailable), errors.Is(err, store.ErrClosed):
		return NewSchedulerError(op, fmt.Errorf("%w: %v", ErrStorageUnavailable, err))
	default:
		return NewSchedulerError(op, err)
	}
}

// stringValue reads a string from a provider config map with a default.
func stringValue(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

// intValue reads an int from a provider config map with a default.
// YAML and JSON decoders disagree on number types, so both int and
// float64 are accepted.
func intValue(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// boolValue reads a bool from a provider config map with a default.
func boolValue(m map[string]interface{}, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}
