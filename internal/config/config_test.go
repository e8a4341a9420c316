package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/rally/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WinningScore, convey.ShouldEqual, 11)
			convey.So(cfg.MaxShuffleAttempts, convey.ShouldEqual, 200)
			convey.So(cfg.PushWorkers, convey.ShouldEqual, 1)
			convey.So(cfg.PollInterval(), convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.ProtectTTL(), convey.ShouldEqual, 4*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with out of range values", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero winning", func(c *config.Config) { c.WinningScore = 0 }},
			{"max below winning", func(c *config.Config) { c.MaxScore = 5 }},
			{"zero poll", func(c *config.Config) { c.PollIntervalMS = 0 }},
			{"negative ttl", func(c *config.Config) { c.ProtectTTLMS = -1 }},
			{"no attempts", func(c *config.Config) { c.MaxShuffleAttempts = 0 }},
			{"short share code", func(c *config.Config) { c.ShareCodeLength = 2 }},
		}

		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()

			convey.Convey("Then "+tc.name+" is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
