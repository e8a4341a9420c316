package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/rally/internal/domain/types"
	"github.com/okian/rally/pkg/logger"
)

// JoinRequest is the body of POST /v1/sessions/{code}/join.
type JoinRequest struct {
	ClientID string `json:"client_id"`
}

// FinishRequest is the body of POST /v1/sessions/{code}/finish.
type FinishRequest struct {
	SessionID string `json:"session_id"`
}

// SessionsHandler serves the session lifecycle endpoints.
type SessionsHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies, log logger.Logger) *SessionsHandler {
	return &SessionsHandler{deps: deps, log: logger.OrNop(log)}
}

// HandleCreate handles POST /v1/sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var meta types.SessionMeta
	if err := decode(w, r, &meta); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.deps.CreateSession(r.Context(), meta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleJoin handles POST /v1/sessions/{code}/join.
func (h *SessionsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		h.fail(w, r, ErrMissingID)
		return
	}
	joined, err := h.deps.JoinSession(r.Context(), chi.URLParam(r, "code"), req.ClientID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joined)
}

// HandleUpsert handles PUT /v1/sessions/{code}/scores.
func (h *SessionsHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var u types.ScoreUpsert
	if err := decode(w, r, &u); err != nil {
		h.fail(w, r, err)
		return
	}
	u.ShareCode = chi.URLParam(r, "code")
	if err := h.deps.UpsertScores(r.Context(), u); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleUpdates handles GET /v1/sessions/{code}/updates?since=&client_id=.
func (h *SessionsHandler) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since int64
	if raw := q.Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			h.fail(w, r, fmt.Errorf("%w: since must be a non-negative integer", ErrBadRequest))
			return
		}
		since = v
	}
	res, err := h.deps.PollUpdates(r.Context(), chi.URLParam(r, "code"), q.Get("client_id"), since)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleFinish handles POST /v1/sessions/{code}/finish.
func (h *SessionsHandler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	var req FinishRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.FinishSession(r.Context(), chi.URLParam(r, "code"), req.SessionID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path), logger.Error(err))
	}
	writeError(w, status, code, err)
}
