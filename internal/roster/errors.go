package roster

import "errors"

// Sentinel kinds for roster errors.
var (
	ErrReadRoster    = errors.New("read roster")
	ErrInvalidRoster = errors.New("invalid roster")
)
