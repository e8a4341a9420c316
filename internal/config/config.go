// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Durations are carried as integer milliseconds and exposed as time.Duration
//   through accessor methods.
// - New(...) builds a Config with defaults; Load layers file and env on top.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration for both the store server and the
// device-side session shell.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the store server listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreURL is the base URL devices use to reach the session store.
	StoreURL string `koanf:"store_url"`

	// ClientID identifies this device to the store. Generated when empty.
	ClientID string `koanf:"client_id"`

	// WinningScore is the score a game is played to.
	WinningScore int `koanf:"winning_score"`

	// MaxScore caps two-digit entries; 0 derives it from WinningScore.
	MaxScore int `koanf:"max_score"`

	// PollIntervalMS is the collaborator poll period.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// ProtectTTLMS is how long a locally typed field wins over polled values.
	ProtectTTLMS int `koanf:"protect_ttl_ms"`

	// MaxShuffleAttempts bounds the generator's shuffle-and-validate loop.
	MaxShuffleAttempts int `koanf:"max_shuffle_attempts"`

	// ShareCodeLength is the length of generated share codes.
	ShareCodeLength int `koanf:"share_code_length"`

	// PresenceWindowMS is how recently a participant must have polled to count as connected.
	PresenceWindowMS int `koanf:"presence_window_ms"`

	// OutboxSize bounds the pending push queue.
	OutboxSize int `koanf:"outbox_size"`

	// PushWorkers drains the outbox. One keeps a device's pushes in order.
	PushWorkers int `koanf:"push_workers"`

	// RequestRate and RequestBurst throttle store requests from one device.
	RequestRate  float64 `koanf:"request_rate"`
	RequestBurst int     `koanf:"request_burst"`

	// RequestTimeoutMS bounds a single store request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		StoreURL:           "http://localhost:9080",
		WinningScore:       11,
		PollIntervalMS:     3000,
		ProtectTTLMS:       4000,
		MaxShuffleAttempts: 200,
		ShareCodeLength:    6,
		PresenceWindowMS:   10_000,
		OutboxSize:         256,
		PushWorkers:        1,
		RequestRate:        20,
		RequestBurst:       10,
		RequestTimeoutMS:   5000,
	}
}

// PollInterval returns the poll period.
func (c *Config) PollInterval() time.Duration { return ms(c.PollIntervalMS) }

// ProtectTTL returns the local grace window.
func (c *Config) ProtectTTL() time.Duration { return ms(c.ProtectTTLMS) }

// PresenceWindow returns the connected-participant window.
func (c *Config) PresenceWindow() time.Duration { return ms(c.PresenceWindowMS) }

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration { return ms(c.RequestTimeoutMS) }

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WinningScore < 1 || c.WinningScore > 99:
		return fmt.Errorf("%w: winning_score must be within 1..99", ErrInvalidConfig)
	case c.MaxScore != 0 && (c.MaxScore < c.WinningScore || c.MaxScore > 99):
		return fmt.Errorf("%w: max_score must be within winning_score..99", ErrInvalidConfig)
	case c.PollIntervalMS <= 0:
		return fmt.Errorf("%w: poll_interval_ms must be positive", ErrInvalidConfig)
	case c.ProtectTTLMS < 0:
		return fmt.Errorf("%w: protect_ttl_ms must not be negative", ErrInvalidConfig)
	case c.MaxShuffleAttempts < 1:
		return fmt.Errorf("%w: max_shuffle_attempts must be at least 1", ErrInvalidConfig)
	case c.ShareCodeLength < 4:
		return fmt.Errorf("%w: share_code_length must be at least 4", ErrInvalidConfig)
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
