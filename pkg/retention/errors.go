package retention

import "errors"

// Sentinel errors for the retention package.
// Use errors.Is to check: errors.Is(err, retention.ErrInvalidRating)
var (
	ErrInvalidRating = errors.New("retention: invalid rating")
	ErrInvalidState  = errors.New("retention: invalid lifecycle state")
	ErrInvalidParams = errors.New("retention: parameters out of bounds")
)
