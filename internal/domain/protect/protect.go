// Package protect guards freshly typed score fields from being overwritten by
// polled values for a short grace window.
package protect

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/clock"
)

// DefaultTTL is the local-preference grace window.
const DefaultTTL = 4 * time.Second

// Guard tracks protected keys and when they expire.
type Guard interface {
	// Protect marks keys as locally owned for the guard's TTL, extending any
	// existing window.
	Protect(ctx context.Context, keys ...model.ScoreKey)

	// Protected reports whether key is inside its window. Expired entries are
	// dropped on the way.
	Protected(ctx context.Context, key model.ScoreKey) bool

	// Release drops key before its window ends.
	Release(ctx context.Context, key model.ScoreKey)

	// Sweep removes every expired entry and returns how many were removed.
	Sweep(ctx context.Context) int

	Size() int64
}

// inMemoryGuard keeps key -> expiry in a map; expiry is lazy.
type inMemoryGuard struct {
	mu      sync.Mutex
	expires map[model.ScoreKey]time.Time
	ttl     time.Duration
	clock   clock.Clock
	size    atomic.Int64
}

// NewInMemoryGuard creates a guard with configuration options.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		ttl:   DefaultTTL,
		clock: clock.Real(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.expires = make(map[model.ScoreKey]time.Time)
	return g
}

func (g *inMemoryGuard) Protect(_ context.Context, keys ...model.ScoreKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	until := g.clock.Now().Add(g.ttl)
	for _, k := range keys {
		if _, exists := g.expires[k]; !exists {
			g.size.Add(1)
		}
		g.expires[k] = until
	}
}

func (g *inMemoryGuard) Protected(_ context.Context, key model.ScoreKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	until, exists := g.expires[key]
	if !exists {
		return false
	}
	if g.clock.Now().Before(until) {
		return true
	}
	delete(g.expires, key)
	g.size.Add(-1)
	return false
}

func (g *inMemoryGuard) Release(_ context.Context, key model.ScoreKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.expires[key]; exists {
		delete(g.expires, key)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) Sweep(_ context.Context) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	removed := 0
	for k, until := range g.expires {
		if !now.Before(until) {
			delete(g.expires, k)
			removed++
		}
	}
	g.size.Add(int64(-removed))
	return removed
}

// Size returns the number of tracked keys, expired or not.
func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
