package api

import "github.com/okian/rally/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
