package collab

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/okian/rally/internal/domain/protect"
	"github.com/okian/rally/pkg/clock"
	"github.com/okian/rally/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for polling, protection and client timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = logger.OrNop(l) }
}

// WithTracer sets the tracer. The global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithOutbox routes pushes through an asynchronous queue.
func WithOutbox(o Outbox) Option {
	return func(e *Engine) { e.outbox = o }
}

// WithNotifier sets the receiver of collaborator and finish signals.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithClientID fixes the device id instead of a random one.
func WithClientID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.status.ClientID = id
		}
	}
}

// WithPollInterval sets the poll period.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithProtectTTL sets the local-preference window.
func WithProtectTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.protectTTL = d
		}
	}
}

// WithGuard replaces the protected-key guard.
func WithGuard(g protect.Guard) Option {
	return func(e *Engine) { e.guard = g }
}
