package retention

import (
	"fmt"
	"time"
)

// Params are the tunable constants of the retention model.
//
// The defaults target 92% retention with difficulty bounded to [1, 10].
// Any parameter set accepted by Validate preserves the model's
// monotonicity guarantees: passes never shrink stability, difficulty
// saturates at its bounds, and intervals stay within
// [MinIntervalDays, MaxIntervalDays].
type Params struct {
	// TargetRetention is the recall probability the next interval is
	// sized to hit. Must be in (0, 1).
	TargetRetention float64 `json:"target_retention"`

	// MinDifficulty and MaxDifficulty bound the difficulty scale.
	MinDifficulty float64 `json:"min_difficulty"`
	MaxDifficulty float64 `json:"max_difficulty"`

	// RetentionFactor is the curve constant k in
	// R(t, S) = (1 + t/(k*S))^-1. Larger k flattens the decay.
	RetentionFactor float64 `json:"retention_factor"`

	// InitialStability is the stability, in days, assigned on the
	// first review, indexed by rating (Fail..Easy).
	InitialStability [5]float64 `json:"initial_stability"`

	// InitialDifficultySlope sets the first-review difficulty
	// D0(g) = midpoint - slope*(g - Good), clamped to bounds.
	InitialDifficultySlope float64 `json:"initial_difficulty_slope"`

	// DifficultyWeight is the per-rating blend weight pulling
	// difficulty toward its target: Fail toward MaxDifficulty, Easy
	// toward MinDifficulty, Hard and Good toward the midpoint.
	DifficultyWeight [5]float64 `json:"difficulty_weight"`

	// Stability growth constants for successful recall:
	// S' = S * (1 + GrowthBase * (MaxDifficulty+1-D) * S^-StabilityPower
	//            * (e^((1-R)*RetrievabilityWeight) - 1) * modifier)
	// where modifier is HardPenalty, 1, or EasyBonus.
	GrowthBase           float64 `json:"growth_base"`
	StabilityPower       float64 `json:"stability_power"`
	RetrievabilityWeight float64 `json:"retrievability_weight"`
	HardPenalty          float64 `json:"hard_penalty"`
	EasyBonus            float64 `json:"easy_bonus"`

	// Stability reset constants for a Fail:
	// S' = min(ForgetBase * D^-ForgetDifficultyPower
	//            * ((S+1)^ForgetStabilityPower - 1)
	//            * e^((1-R)*ForgetRetrievabilityWeight), S)
	ForgetBase                 float64 `json:"forget_base"`
	ForgetDifficultyPower      float64 `json:"forget_difficulty_power"`
	ForgetStabilityPower       float64 `json:"forget_stability_power"`
	ForgetRetrievabilityWeight float64 `json:"forget_retrievability_weight"`

	// MinIntervalDays and MaxIntervalDays bound Review intervals.
	MinIntervalDays int `json:"min_interval_days"`
	MaxIntervalDays int `json:"max_interval_days"`

	// LearningStep and RelearningStep are the short delays applied
	// before a Learning or Relearning item graduates back to Review.
	LearningStep   time.Duration `json:"learning_step"`
	RelearningStep time.Duration `json:"relearning_step"`

	// GraduationStreak is the number of consecutive non-Fail ratings
	// needed to move Learning -> Review. RecoveryStreak is the same
	// for Relearning -> Review.
	GraduationStreak int `json:"graduation_streak"`
	RecoveryStreak   int `json:"recovery_streak"`
}

// DefaultParams returns the default model parameters.
func DefaultParams() Params {
	return Params{
		TargetRetention: 0.92,
		MinDifficulty:   1,
		MaxDifficulty:   10,
		RetentionFactor: 9,

		InitialStability:       [5]float64{Fail: 0.5, Hard: 1.2, Good: 2.5, Easy: 6.0},
		InitialDifficultySlope: 1.5,
		DifficultyWeight:       [5]float64{Fail: 0.25, Hard: 0.06, Good: 0.06, Easy: 0.12},

		GrowthBase:           3.0,
		StabilityPower:       0.2,
		RetrievabilityWeight: 1.5,
		HardPenalty:          0.5,
		EasyBonus:            2.0,

		ForgetBase:                 1.5,
		ForgetDifficultyPower:      0.3,
		ForgetStabilityPower:       0.6,
		ForgetRetrievabilityWeight: 1.2,

		MinIntervalDays: 1,
		MaxIntervalDays: 365,

		LearningStep:   10 * time.Minute,
		RelearningStep: 10 * time.Minute,

		GraduationStreak: 2,
		RecoveryStreak:   2,
	}
}

// Validate checks that the parameters are internally consistent.
func (p Params) Validate() error {
	if p.TargetRetention <= 0 || p.TargetRetention >= 1 {
		return fmt.Errorf("%w: target retention %f not in (0, 1)", ErrInvalidParams, p.TargetRetention)
	}
	if p.MinDifficulty <= 0 || p.MaxDifficulty <= p.MinDifficulty {
		return fmt.Errorf("%w: difficulty bounds [%f, %f]", ErrInvalidParams, p.MinDifficulty, p.MaxDifficulty)
	}
	if p.RetentionFactor <= 0 {
		return fmt.Errorf("%w: retention factor %f must be positive", ErrInvalidParams, p.RetentionFactor)
	}
	for r := Fail; r <= Easy; r++ {
		if p.InitialStability[r] <= 0 {
			return fmt.Errorf("%w: initial stability for %s must be positive", ErrInvalidParams, r)
		}
		if p.DifficultyWeight[r] < 0 || p.DifficultyWeight[r] > 1 {
			return fmt.Errorf("%w: difficulty weight for %s not in [0, 1]", ErrInvalidParams, r)
		}
	}
	if p.GrowthBase < 0 || p.StabilityPower < 0 || p.RetrievabilityWeight < 0 {
		return fmt.Errorf("%w: growth constants must be non-negative", ErrInvalidParams)
	}
	if p.HardPenalty < 0 || p.HardPenalty > 1 {
		return fmt.Errorf("%w: hard penalty %f not in [0, 1]", ErrInvalidParams, p.HardPenalty)
	}
	if p.EasyBonus < 1 {
		return fmt.Errorf("%w: easy bonus %f must be >= 1", ErrInvalidParams, p.EasyBonus)
	}
	if p.ForgetBase <= 0 {
		return fmt.Errorf("%w: forget base %f must be positive", ErrInvalidParams, p.ForgetBase)
	}
	if p.MinIntervalDays < 1 || p.MaxIntervalDays < p.MinIntervalDays {
		return fmt.Errorf("%w: interval bounds [%d, %d]", ErrInvalidParams, p.MinIntervalDays, p.MaxIntervalDays)
	}
	if p.LearningStep <= 0 || p.RelearningStep <= 0 {
		return fmt.Errorf("%w: learning steps must be positive", ErrInvalidParams)
	}
	if p.GraduationStreak < 1 || p.RecoveryStreak < 1 {
		return fmt.Errorf("%w: streak thresholds must be >= 1", ErrInvalidParams)
	}
	return nil
}
