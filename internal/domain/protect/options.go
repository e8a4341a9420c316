package protect

import (
	"time"

	"github.com/okian/rally/pkg/clock"
)

// Option applies a configuration option to the in-memory guard.
type Option func(*inMemoryGuard)

// WithTTL sets the protection window. Zero disables protection.
func WithTTL(ttl time.Duration) Option {
	return func(g *inMemoryGuard) {
		if ttl >= 0 {
			g.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(g *inMemoryGuard) {
		if c != nil {
			g.clock = c
		}
	}
}
