package scoring

import "errors"

// Sentinel kinds for score entry.
var (
	ErrUnknownKey          = errors.New("score key outside schedule")
	ErrFrozen              = errors.New("match finished, scores are read-only")
	ErrInvalidWinningScore = errors.New("winning score must be within 1..99")
)
