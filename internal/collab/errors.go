package collab

import "errors"

// Sentinel kinds for sync errors. Create and join failures are surfaced to
// the shell; push and poll failures are logged and retried by the next cycle.
var (
	ErrCreate             = errors.New("create session failed")
	ErrJoin               = errors.New("join session failed")
	ErrPush               = errors.New("push failed")
	ErrPoll               = errors.New("poll failed")
	ErrFinish             = errors.New("finish session failed")
	ErrNotInitialized     = errors.New("sync not initialized")
	ErrAlreadyInitialized = errors.New("sync already initialized")
	ErrFinished           = errors.New("session finished")
)
