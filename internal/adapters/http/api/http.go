// Package api exposes the session store over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/rally/internal/domain/types"
	"github.com/okian/rally/pkg/logger"
)

// Dependencies required by HTTP handlers. repository.MemoryStore satisfies it.
type Dependencies interface {
	CreateSession(ctx context.Context, meta types.SessionMeta) (types.Created, error)
	JoinSession(ctx context.Context, code, clientID string) (types.Joined, error)
	UpsertScores(ctx context.Context, u types.ScoreUpsert) error
	PollUpdates(ctx context.Context, code, clientID string, since int64) (types.PollResult, error)
	FinishSession(ctx context.Context, code, sessionID string) error
	StatsProvider
}

// Server wires HTTP routes for the session API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	log             logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.sessionsHandler = NewSessionsHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.sessionsHandler.HandleCreate, "create"))
		r.Route("/{code}", func(r chi.Router) {
			r.Post("/join", MetricsMiddleware(s.sessionsHandler.HandleJoin, "join"))
			r.Put("/scores", MetricsMiddleware(s.sessionsHandler.HandleUpsert, "scores"))
			r.Get("/updates", MetricsMiddleware(s.sessionsHandler.HandleUpdates, "updates"))
			r.Post("/finish", MetricsMiddleware(s.sessionsHandler.HandleFinish, "finish"))
		})
	})
}

// Handler returns a router with every route registered. Callers may add
// further routes to it.
func (s *Server) Handler() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, nil)
	})
	s.Register(r)
	return r
}
