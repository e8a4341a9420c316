package simulate

import (
	"time"

	"github.com/okian/rally/internal/domain/model"
)

// Config holds the parameters of a convergence run.
type Config struct {
	Devices      int
	Players      int
	Rounds       []model.RoundType
	WinningScore int
	Seed         uint64
	PollInterval time.Duration
	// Timeout bounds how long devices may take to converge after scoring.
	Timeout time.Duration
}

// DefaultConfig returns a small club night across three devices.
func DefaultConfig() Config {
	return Config{
		Devices:      3,
		Players:      12,
		Rounds:       []model.RoundType{model.Mixed, model.SameGender, model.Mixer},
		WinningScore: 11,
		Seed:         1,
		PollInterval: 20 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Devices < 1 {
		c.Devices = d.Devices
	}
	if c.Players < 1 {
		c.Players = d.Players
	}
	if len(c.Rounds) == 0 {
		c.Rounds = d.Rounds
	}
	if c.WinningScore < 3 {
		c.WinningScore = d.WinningScore
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// Stats summarises a run.
type Stats struct {
	ShareCode   string
	Devices     int
	Games       int
	Keystrokes  int
	Pushes      int
	RemoteEdits int
	Converged   bool
	Finished    bool
	Duration    time.Duration
}
