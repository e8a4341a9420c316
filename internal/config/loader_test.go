package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/rally/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.WinningScore, convey.ShouldEqual, 11)
				convey.So(cfg.PollIntervalMS, convey.ShouldEqual, 3000)
				convey.So(cfg.ProtectTTLMS, convey.ShouldEqual, 4000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RALLY_ADDR", ":8080")
			_ = os.Setenv("RALLY_WINNING_SCORE", "15")
			_ = os.Setenv("RALLY_POLL_INTERVAL_MS", "1500")
			_ = os.Setenv("RALLY_STORE_URL", "http://store:9080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WinningScore, convey.ShouldEqual, 15)
				convey.So(cfg.PollIntervalMS, convey.ShouldEqual, 1500)
				convey.So(cfg.StoreURL, convey.ShouldEqual, "http://store:9080")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
# club night
addr: ":9090"
winning_score: 21
protect_ttl_ms: 2500
share_code_length: 8
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RALLY_CONFIG", tmpFile)
			_ = os.Setenv("RALLY_ADDR", ":8081")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")        // env
				convey.So(cfg.WinningScore, convey.ShouldEqual, 21)     // file
				convey.So(cfg.ProtectTTLMS, convey.ShouldEqual, 2500)   // file
				convey.So(cfg.ShareCodeLength, convey.ShouldEqual, 8)   // file
				convey.So(cfg.PollIntervalMS, convey.ShouldEqual, 3000) // default
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RALLY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.LoadFile(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("RALLY_WINNING_SCORE", "eleven")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an out of range value", func() {
			_ = os.Setenv("RALLY_WINNING_SCORE", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"RALLY_CONFIG",
		"RALLY_ADDR",
		"RALLY_WINNING_SCORE",
		"RALLY_POLL_INTERVAL_MS",
		"RALLY_STORE_URL",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "rally-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
