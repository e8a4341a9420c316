package app

import (
	"time"

	"github.com/okian/rally/internal/collab"
	"github.com/okian/rally/internal/config"
	"github.com/okian/rally/pkg/clock"
	"github.com/okian/rally/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithStore sets the remote store used by Invite and Join.
func WithStore(store collab.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithName sets the default session name used by Invite.
func WithName(name string) Option {
	return func(s *Session) { s.name = name }
}

// WithWinningScore sets the score games are played to.
func WithWinningScore(w int) Option {
	return func(s *Session) {
		if w > 0 {
			s.winningScore = w
		}
	}
}

// WithMaxScore pins the two-digit truncation threshold.
func WithMaxScore(m int) Option {
	return func(s *Session) { s.maxScore = m }
}

// WithSeed makes schedule generation deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Session) { s.seed = &seed }
}

// WithMaxAttempts bounds the generator's shuffle loop.
func WithMaxAttempts(n int) Option {
	return func(s *Session) { s.maxAttempts = n }
}

// WithClientID fixes this device's identity towards the store.
func WithClientID(id string) Option {
	return func(s *Session) { s.clientID = id }
}

// WithPollInterval sets the collaborator poll period.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

// WithProtectTTL sets how long a local entry wins over polled values.
func WithProtectTTL(d time.Duration) Option {
	return func(s *Session) { s.protectTTL = d }
}

// WithOutboxSize bounds pending pushes.
func WithOutboxSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.outboxSize = n
		}
	}
}

// WithPushWorkers sets how many workers drain the outbox.
func WithPushWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.pushWorkers = n
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithNotifier receives collaborator and finish signals.
func WithNotifier(n collab.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithOnComplete is called once when every score field is filled.
func WithOnComplete(fn func()) Option {
	return func(s *Session) { s.onComplete = fn }
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig applies the device-side settings of cfg.
func FromConfig(cfg *config.Config) Option {
	return func(s *Session) {
		for _, opt := range []Option{
			WithWinningScore(cfg.WinningScore),
			WithMaxScore(cfg.MaxScore),
			WithMaxAttempts(cfg.MaxShuffleAttempts),
			WithClientID(cfg.ClientID),
			WithPollInterval(cfg.PollInterval()),
			WithProtectTTL(cfg.ProtectTTL()),
			WithOutboxSize(cfg.OutboxSize),
			WithPushWorkers(cfg.PushWorkers),
		} {
			opt(s)
		}
	}
}
