package repository

import "errors"

// Sentinel kinds for session store errors.
var (
	ErrNotFound        = errors.New("session not found")
	ErrFinished        = errors.New("session finished")
	ErrSessionMismatch = errors.New("session id does not match share code")
	ErrInvalidScore    = errors.New("score outside session shape")
	ErrCodeSpace       = errors.New("could not allocate a unique share code")
)
