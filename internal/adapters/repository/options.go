package repository

import (
	"time"

	"github.com/okian/rally/pkg/clock"
	"github.com/okian/rally/pkg/logger"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithShareCodeLength sets the length of generated share codes.
func WithShareCodeLength(n int) Option {
	return func(s *MemoryStore) {
		if n >= 4 {
			s.codeLength = n
		}
	}
}

// WithPresenceWindow sets how recently a client must have been seen to count as connected.
func WithPresenceWindow(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.presence = d
		}
	}
}

// WithRetention sets how long finished sessions stay joinable before removal.
func WithRetention(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics and cleanup.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithClock sets the time source for timestamps, presence and cleanup.
func WithClock(c clock.Clock) Option {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) { s.log = logger.OrNop(l) }
}
