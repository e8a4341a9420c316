// Command rally is the terminal shell for running a doubles match session.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/okian/rally/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rally",
		Usage: "schedule, score and share a doubles match session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (YAML)", EnvVars: []string{"RALLY_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "override log level"},
		},
		Commands: []*cli.Command{
			scheduleCommand(),
			hostCommand(),
			joinCommand(),
			watchCommand(),
			simulateCommand(),
		},
	}
}
