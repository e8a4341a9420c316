package api

import (
	"errors"
	"net/http"

	"github.com/okian/rally/internal/adapters/repository"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrMissingID  = errors.New("missing client_id")
)

// Error codes carried in the JSON error body. Clients map them back to
// repository sentinels.
const (
	CodeBadRequest      = "bad_request"
	CodeNotFound        = "not_found"
	CodeFinished        = "finished"
	CodeSessionMismatch = "session_mismatch"
	CodeInvalidScore    = "invalid_score"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor translates store errors into an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, repository.ErrFinished):
		return http.StatusConflict, CodeFinished
	case errors.Is(err, repository.ErrSessionMismatch):
		return http.StatusConflict, CodeSessionMismatch
	case errors.Is(err, repository.ErrInvalidScore):
		return http.StatusBadRequest, CodeInvalidScore
	case errors.Is(err, repository.ErrCodeSpace):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMissingID):
		return http.StatusBadRequest, CodeBadRequest
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
