package retention

import "time"

// MemoryState is the scheduling state of one learner-question pair.
//
// Stability and Difficulty are meaningless until the first review
// (State == New); after that Stability is always positive and
// Difficulty stays within the configured bounds.
type MemoryState struct {
	// Stability is the expected time, in days, for recall probability
	// to decay to the reference threshold.
	Stability float64 `json:"stability"`

	// Difficulty is the learner-specific resistance to stabilizing
	// this item, clamped to [Params.MinDifficulty, Params.MaxDifficulty].
	Difficulty float64 `json:"difficulty"`

	// State is the lifecycle stage.
	State State `json:"state"`

	// Due is the next moment the item is eligible for review.
	// Zero while State == New.
	Due time.Time `json:"due"`

	// LapseCount is the number of Fail ratings received while in Review.
	LapseCount int `json:"lapse_count"`

	// ReviewCount is the total number of graded reviews ever applied.
	ReviewCount int `json:"review_count"`

	// Streak is the number of consecutive non-Fail ratings. It drives
	// graduation out of Learning and recovery out of Relearning.
	Streak int `json:"streak"`

	// LastReview is when the item was last graded. Nil before the
	// first review.
	LastReview *time.Time `json:"last_review,omitempty"`
}

// NewMemoryState returns the state of a never-graded item.
func NewMemoryState() MemoryState {
	return MemoryState{State: New}
}

// IsNew reports whether the item has never been graded.
func (m MemoryState) IsNew() bool {
	return m.State == New
}

// elapsedDays returns the days since the last review, never negative.
// Zero if the item has never been reviewed.
func (m MemoryState) elapsedDays(now time.Time) float64 {
	if m.LastReview == nil {
		return 0
	}
	d := now.Sub(*m.LastReview).Hours() / 24.0
	if d < 0 {
		return 0
	}
	return d
}
