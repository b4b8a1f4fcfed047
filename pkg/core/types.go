package core

import (
	"time"

	"github.com/recallhq/recall-go/pkg/retention"
)

// Session is an ordered study queue for one learner on one day.
//
// Due reviews always come before new introductions, and neither part
// exceeds the remaining daily budget at build time.
//
// Example:
//
//	session, _ := client.BuildSession(ctx, "learner_001", time.Now())
//	for _, qid := range session.QuestionIDs {
//	    // present question, collect rating, call ApplyRating
//	}
type Session struct {
	// LearnerID identifies the learner this session was built for.
	LearnerID string `json:"learner_id"`

	// BuiltAt is the instant the session was assembled. Due selection
	// and budget lookups were evaluated against this time.
	BuiltAt time.Time `json:"built_at"`

	// QuestionIDs is the ordered queue: DueCount due questions
	// followed by NewCount never-attempted questions.
	QuestionIDs []int64 `json:"question_ids"`

	// DueCount is the number of due reviews at the head of the queue.
	DueCount int `json:"due_count"`

	// NewCount is the number of new introductions at the tail.
	NewCount int `json:"new_count"`
}

// Len returns the total number of questions in the session.
func (s *Session) Len() int {
	return len(s.QuestionIDs)
}

// MemorySnapshot is the post-grading view of one learner/question
// memory, returned by ApplyRating so callers can show the outcome
// without a second round trip.
type MemorySnapshot struct {
	// LearnerID identifies the learner.
	LearnerID string `json:"learner_id"`

	// QuestionID identifies the question.
	QuestionID int64 `json:"question_id"`

	// Memory is the scheduling state after the rating was applied.
	Memory retention.MemoryState `json:"memory"`

	// Retrievability is the model's recall probability estimate at
	// the grading instant, before the rating was applied. Zero for a
	// first attempt.
	Retrievability float64 `json:"retrievability"`

	// FirstAttempt reports whether this rating introduced the
	// question, consuming new-budget rather than review-budget.
	FirstAttempt bool `json:"first_attempt"`

	// EventID is the idempotency key the grading event was recorded
	// under. Generated when the caller did not supply one.
	EventID string `json:"event_id"`
}

// BudgetStatus reports the remaining daily capacity for a learner.
type BudgetStatus struct {
	// LearnerID identifies the learner.
	LearnerID string `json:"learner_id"`

	// Date is the UTC calendar day the counters belong to,
	// formatted as "2006-01-02".
	Date string `json:"date"`

	// ReviewsRemaining is how many more reviews fit today.
	ReviewsRemaining int `json:"reviews_remaining"`

	// NewRemaining is how many more new introductions fit today.
	NewRemaining int `json:"new_remaining"`
}
