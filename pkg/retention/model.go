package retention

import (
	"fmt"
	"math"
	"time"
)

// minStability is the floor applied to every stability update.
const minStability = 0.001

// Model computes memory state updates from graded ratings.
//
// A Model is immutable after construction and safe for concurrent use.
type Model struct {
	p        Params
	midpoint float64
}

// NewModel creates a Model from the given parameters.
// Returns ErrInvalidParams if the parameters fail validation.
func NewModel(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		p:        p,
		midpoint: (p.MinDifficulty + p.MaxDifficulty) / 2,
	}, nil
}

// Params returns a copy of the model's parameters.
func (m *Model) Params() Params {
	return m.p
}

// Retrievability returns the modeled probability of successful recall
// at the given time. Returns 0 for items that were never reviewed.
func (m *Model) Retrievability(state MemoryState, now time.Time) float64 {
	if state.LastReview == nil || state.Stability <= 0 {
		return 0
	}
	return m.retrievability(state.elapsedDays(now), state.Stability)
}

// Update applies a graded rating to a memory state and returns the
// next state. The input state is not mutated and no side effects
// occur; ReviewCount is incremented on every successful update.
//
// Returns ErrInvalidRating (before computing anything) if the rating
// is outside Fail..Easy, and ErrInvalidState for a corrupted state.
func (m *Model) Update(state MemoryState, r Rating, now time.Time) (MemoryState, error) {
	if !r.IsValid() {
		return MemoryState{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	if !state.State.IsValid() {
		return MemoryState{}, fmt.Errorf("%w: %d", ErrInvalidState, int(state.State))
	}

	next := state

	if state.LastReview == nil {
		// First exposure: elapsed time is irrelevant.
		next.Stability = clampS(m.p.InitialStability[r])
		next.Difficulty = m.initDifficulty(r)
	} else {
		retr := m.retrievability(state.elapsedDays(now), state.Stability)
		if r == Fail {
			next.Stability = m.forgetStability(state.Difficulty, state.Stability, retr)
		} else {
			next.Stability = m.growStability(state.Difficulty, state.Stability, retr, r)
		}
		next.Difficulty = m.nextDifficulty(state.Difficulty, r)
	}

	if r.IsPass() {
		next.Streak = state.Streak + 1
	} else {
		next.Streak = 0
	}
	next.ReviewCount = state.ReviewCount + 1

	switch state.State {
	case New, Learning:
		if r.IsPass() && next.Streak >= m.p.GraduationStreak {
			next.State = Review
			next.Due = now.Add(m.interval(next.Stability))
		} else {
			next.State = Learning
			next.Due = now.Add(m.p.LearningStep)
		}
	case Review:
		if r == Fail {
			next.State = Relearning
			next.LapseCount = state.LapseCount + 1
			next.Due = now.Add(m.p.RelearningStep)
		} else {
			next.Due = now.Add(m.interval(next.Stability))
		}
	case Relearning:
		if r.IsPass() && next.Streak >= m.p.RecoveryStreak {
			next.State = Review
			next.Due = now.Add(m.interval(next.Stability))
		} else {
			next.State = Relearning
			next.Due = now.Add(m.p.RelearningStep)
		}
	}

	reviewedAt := now
	next.LastReview = &reviewedAt
	return next, nil
}

// retrievability computes R(t, S) = (1 + t/(k*S))^-1.
// R(0) = 1 and R decays monotonically in t/S.
func (m *Model) retrievability(elapsedDays, stability float64) float64 {
	return 1 / (1 + elapsedDays/(m.p.RetentionFactor*stability))
}

// interval returns the review interval that decays retrievability to
// TargetRetention: I(S) = k*S*(1/R* - 1), clamped to the configured
// day bounds.
func (m *Model) interval(stability float64) time.Duration {
	days := m.p.RetentionFactor * stability * (1/m.p.TargetRetention - 1)
	d := int(math.Round(days))
	if d < m.p.MinIntervalDays {
		d = m.p.MinIntervalDays
	}
	if d > m.p.MaxIntervalDays {
		d = m.p.MaxIntervalDays
	}
	return time.Duration(d) * 24 * time.Hour
}

// initDifficulty returns the first-review difficulty
// D0(g) = midpoint - slope*(g - Good), clamped to bounds.
func (m *Model) initDifficulty(r Rating) float64 {
	return m.clampD(m.midpoint - m.p.InitialDifficultySlope*float64(r-Good))
}

// nextDifficulty blends difficulty toward a per-rating target:
// Fail pulls toward MaxDifficulty, Easy toward MinDifficulty, Hard
// and Good toward the midpoint. The blend saturates at the bounds.
func (m *Model) nextDifficulty(d float64, r Rating) float64 {
	var target float64
	switch r {
	case Fail:
		target = m.p.MaxDifficulty
	case Easy:
		target = m.p.MinDifficulty
	default:
		target = m.midpoint
	}
	return m.clampD(d + m.p.DifficultyWeight[r]*(target-d))
}

// growStability computes stability after a successful recall. The
// growth factor rewards recall at low retrievability and low
// difficulty, and is never below 1.
func (m *Model) growStability(d, s, retr float64, r Rating) float64 {
	modifier := 1.0
	switch r {
	case Hard:
		modifier = m.p.HardPenalty
	case Easy:
		modifier = m.p.EasyBonus
	}
	incr := m.p.GrowthBase *
		(m.p.MaxDifficulty + 1 - d) *
		math.Pow(s, -m.p.StabilityPower) *
		(math.Exp((1-retr)*m.p.RetrievabilityWeight) - 1) *
		modifier
	return clampS(s * (1 + incr))
}

// forgetStability computes stability after a Fail. The result is a
// fraction of the previous stability; harder items shrink more.
func (m *Model) forgetStability(d, s, retr float64) float64 {
	reset := m.p.ForgetBase *
		math.Pow(d, -m.p.ForgetDifficultyPower) *
		(math.Pow(s+1, m.p.ForgetStabilityPower) - 1) *
		math.Exp((1-retr)*m.p.ForgetRetrievabilityWeight)
	return clampS(math.Min(reset, s))
}

func (m *Model) clampD(d float64) float64 {
	return math.Min(math.Max(d, m.p.MinDifficulty), m.p.MaxDifficulty)
}

func clampS(s float64) float64 {
	return math.Max(s, minStability)
}
