// Package retention implements the statistical memory model used to
// schedule question reviews.
//
// The model tracks, per learner and question, a memory stability (in
// days), an intrinsic difficulty, and a lifecycle state. A graded
// rating feeds Model.Update, which returns the next MemoryState and
// due time. The package is pure: no I/O, no clocks, no randomness.
// Identical (state, rating, now) inputs always produce identical
// outputs, so review histories can be replayed exactly.
//
// Basic usage:
//
//	model, err := retention.NewModel(retention.DefaultParams())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	state := retention.NewMemoryState()
//	state, err = model.Update(state, retention.Good, time.Now())
package retention
