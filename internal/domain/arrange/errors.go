package arrange

import "errors"

// Sentinel kinds for arrangement errors.
var (
	ErrCrossRound  = errors.New("same round only")
	ErrInvalidSlot = errors.New("slot out of range")
	ErrEmptyName   = errors.New("name must not be empty")
	ErrNotEditing  = errors.New("no rename in progress")
)
