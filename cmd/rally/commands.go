package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/okian/rally/internal/adapters/http/client"
	"github.com/okian/rally/internal/adapters/repository"
	"github.com/okian/rally/internal/app"
	"github.com/okian/rally/internal/collab"
	"github.com/okian/rally/internal/config"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/internal/roster"
	"github.com/okian/rally/internal/simulate"
	"github.com/okian/rally/pkg/logger"
)

func rosterFlag() cli.Flag {
	return &cli.StringFlag{Name: "roster", Aliases: []string{"r"}, Usage: "roster file (YAML)", Required: true}
}

func seedFlag() cli.Flag {
	return &cli.Uint64Flag{Name: "seed", Usage: "schedule seed; devices sharing a session must use the same one"}
}

func storeFlag() cli.Flag {
	return &cli.StringFlag{Name: "store", Usage: "session store URL (overrides store_url)"}
}

func codeFlag() cli.Flag {
	return &cli.StringFlag{Name: "code", Aliases: []string{"c"}, Usage: "share code", Required: true}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(c.Context, c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if url := c.String("store"); url != "" {
		cfg.StoreURL = url
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: log_level: %w", config.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func newStoreClient(cfg *config.Config) (*client.Client, error) {
	return client.New(cfg.StoreURL,
		client.WithRateLimit(cfg.RequestRate, cfg.RequestBurst),
		client.WithTimeout(cfg.RequestTimeout()),
		client.WithLogger(logger.Named("client")),
	)
}

// newSession builds a session from the roster flag. Roster values win over config.
func newSession(c *cli.Context, cfg *config.Config, store collab.Store, notifier collab.Notifier) (*app.Session, *roster.Roster, error) {
	ros, err := roster.Load(c.String("roster"))
	if err != nil {
		return nil, nil, err
	}
	opts := []app.Option{
		app.FromConfig(cfg),
		app.WithName(ros.Name),
		app.WithWinningScore(ros.WinningScore),
		app.WithLogger(logger.Named("session")),
	}
	if c.IsSet("seed") {
		opts = append(opts, app.WithSeed(c.Uint64("seed")))
	}
	if store != nil {
		opts = append(opts, app.WithStore(store))
	}
	if notifier != nil {
		opts = append(opts, app.WithNotifier(notifier))
	}
	return app.New(ros.Players, ros.Rounds, opts...), ros, nil
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "generate and print a schedule",
		Flags: []cli.Flag{rosterFlag(), seedFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			sess, _, err := newSession(c, cfg, nil, nil)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close(c.Context) }()

			out := c.App.Writer
			printSchedule(out, sess.Schedule(), sess.Board())
			for _, rr := range sess.Report().Rounds {
				if rr.Fallback {
					fmt.Fprintf(out, "round %d: partners repeated after %d attempts\n", rr.Index+1, rr.Attempts)
				}
			}
			return nil
		},
	}
}

func hostCommand() *cli.Command {
	return &cli.Command{
		Name:  "host",
		Usage: "create a shared session and score interactively",
		Flags: []cli.Flag{rosterFlag(), seedFlag(), storeFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, err := newStoreClient(cfg)
			if err != nil {
				return err
			}
			sh := newShell(os.Stdin, c.App.Writer)
			sess, ros, err := newSession(c, cfg, store, sh)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close(c.Context) }()
			sh.sess = sess

			created, err := sess.Invite(c.Context, ros.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "share code: %s\n", created.ShareCode)
			return sh.run(c.Context)
		},
	}
}

func joinCommand() *cli.Command {
	return &cli.Command{
		Name:  "join",
		Usage: "join a shared session and score interactively",
		Flags: []cli.Flag{rosterFlag(), seedFlag(), storeFlag(), codeFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, err := newStoreClient(cfg)
			if err != nil {
				return err
			}
			sh := newShell(os.Stdin, c.App.Writer)
			sess, _, err := newSession(c, cfg, store, sh)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close(c.Context) }()
			sh.sess = sess

			joined, err := sess.Join(c.Context, c.String("code"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "joined %q with %d participant(s)\n", joined.Meta.Name, joined.Connected)
			return sh.run(c.Context)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "follow a shared session read-only until it finishes",
		Flags: []cli.Flag{rosterFlag(), seedFlag(), storeFlag(), codeFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, err := newStoreClient(cfg)
			if err != nil {
				return err
			}
			sh := newShell(nil, c.App.Writer)
			sh.echo = true
			sess, _, err := newSession(c, cfg, store, sh)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close(c.Context) }()
			sh.sess = sess

			if _, err := sess.Join(c.Context, c.String("code")); err != nil {
				return err
			}
			sh.show()
			select {
			case <-sh.finished:
			case <-c.Context.Done():
			}
			return nil
		},
	}
}

func simulateCommand() *cli.Command {
	def := simulate.DefaultConfig()
	return &cli.Command{
		Name:  "simulate",
		Usage: "run several simulated devices through one match and check convergence",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "devices", Value: def.Devices, Usage: "number of devices"},
			&cli.IntFlag{Name: "players", Value: def.Players, Usage: "roster size"},
			&cli.StringSliceFlag{Name: "round", Usage: "round types, repeatable (mixed, same-gender, mixer)"},
			&cli.Uint64Flag{Name: "seed", Value: def.Seed, Usage: "seed for rosters, schedule and scores"},
			&cli.StringFlag{Name: "store", Usage: "session store URL; in-process store when empty"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			sim := simulate.Config{
				Devices:      c.Int("devices"),
				Players:      c.Int("players"),
				WinningScore: cfg.WinningScore,
				Seed:         c.Uint64("seed"),
				PollInterval: def.PollInterval,
			}
			for _, raw := range c.StringSlice("round") {
				rt, err := model.ParseRoundType(raw)
				if err != nil {
					return err
				}
				sim.Rounds = append(sim.Rounds, rt)
			}

			var store collab.Store
			if c.IsSet("store") {
				if store, err = newStoreClient(cfg); err != nil {
					return err
				}
			} else {
				mem := repository.NewMemoryStore(c.Context, repository.WithLogger(logger.Named("store")))
				defer func() { _ = mem.Close() }()
				store = mem
			}

			stats, err := simulate.Run(c.Context, store, sim, logger.Named("simulate"))
			fmt.Fprintf(c.App.Writer,
				"session %s: %d devices, %d games, %d keystrokes, %d pushes, %d remote edits, converged=%t finished=%t in %s\n",
				stats.ShareCode, stats.Devices, stats.Games, stats.Keystrokes, stats.Pushes,
				stats.RemoteEdits, stats.Converged, stats.Finished, stats.Duration)
			if errors.Is(err, simulate.ErrDiverged) {
				return cli.Exit(err.Error(), 2)
			}
			return err
		},
	}
}
