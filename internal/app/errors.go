package app

import "errors"

// Sentinel kinds for session errors.
var (
	ErrNoStore = errors.New("no session store configured")
	ErrShared  = errors.New("rounds cannot be added once the session is shared")
	ErrClosed  = errors.New("session closed")
)
