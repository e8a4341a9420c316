package client

import (
	"errors"
	"fmt"
)

// Sentinel kinds for client errors.
var (
	ErrBadURL      = errors.New("invalid store url")
	ErrTransport   = errors.New("store unreachable")
	ErrDecode      = errors.New("malformed store response")
	ErrRateLimited = errors.New("request rate limit wait aborted")
	ErrStatus      = errors.New("unexpected store status")
)

// StatusError is returned for non-2xx responses. It unwraps to the matching
// repository sentinel so callers can use errors.Is across transports.
type StatusError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("store returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("store returned %d", e.Status)
}

func (e *StatusError) Unwrap() error { return e.kind }
