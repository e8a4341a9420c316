package schedule

import (
	"math/rand/v2"

	"github.com/okian/rally/pkg/logger"
)

// Option configures a Generator.
type Option func(*Generator)

// WithRand injects the random source used for shuffles.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithSeed seeds a deterministic PCG source.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithMaxAttempts bounds the shuffle-and-validate loop per pool.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithHistory seeds the generator with an existing history.
func WithHistory(h *History) Option {
	return func(g *Generator) {
		if h != nil {
			g.history = h
		}
	}
}

// WithLogger sets the generator logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		g.log = logger.OrNop(l)
	}
}
