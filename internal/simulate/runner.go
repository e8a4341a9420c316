// Package simulate drives several devices through one shared match and checks
// that their score boards converge.
package simulate

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/sync/errgroup"

	"github.com/okian/rally/internal/app"
	"github.com/okian/rally/internal/collab"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
)

const settleCheckEvery = 10 * time.Millisecond

type device struct {
	id      string
	session *app.Session
	edits   atomic.Int64
}

func (d *device) CollaboratorUpdated(keys []model.ScoreKey) { d.edits.Add(int64(len(keys))) }
func (d *device) MatchFinished()                            {}

// Run creates a session on the first device, joins the rest, lets each device
// score the games it owns concurrently and waits for every board to match.
func Run(ctx context.Context, store collab.Store, cfg Config, log logger.Logger) (Stats, error) {
	cfg = cfg.withDefaults()
	log = logger.OrNop(log)
	start := time.Now()
	stats := Stats{Devices: cfg.Devices}

	faker := gofakeit.New(cfg.Seed)
	roster := RandomRoster(faker, cfg.Players)

	devices := make([]*device, cfg.Devices)
	for i := range devices {
		d := &device{id: fmt.Sprintf("device-%d", i+1)}
		d.session = app.New(roster, cfg.Rounds,
			app.WithStore(store),
			app.WithSeed(cfg.Seed),
			app.WithWinningScore(cfg.WinningScore),
			app.WithClientID(d.id),
			app.WithPollInterval(cfg.PollInterval),
			app.WithNotifier(d),
			app.WithLogger(log.Named(d.id)),
		)
		devices[i] = d
	}
	defer func() {
		for _, d := range devices {
			_ = d.session.Close(context.WithoutCancel(ctx))
		}
	}()

	created, err := devices[0].session.Invite(ctx, "simulated club night")
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	stats.ShareCode = created.ShareCode
	for _, d := range devices[1:] {
		if _, err := d.session.Join(ctx, created.ShareCode); err != nil {
			return stats, fmt.Errorf("%w: %s: %w", ErrSetup, d.id, err)
		}
	}
	log.Info(ctx, "devices connected",
		logger.String("share_code", created.ShareCode), logger.Int("devices", cfg.Devices))

	plans := assign(devices[0].session.Schedule().Shape(), cfg.Devices)
	for _, p := range plans {
		stats.Games += len(p)
	}
	var keystrokes, pushes atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range devices {
		plan := plans[i]
		rng := gofakeit.New(cfg.Seed + uint64(i) + 1)
		g.Go(func() error {
			for _, gm := range plan {
				team := 1 + rng.Number(0, 1)
				loser := losingScore(rng, cfg.WinningScore)
				for n := 1; n <= len(loser); n++ {
					res, err := d.session.EnterScore(gctx, model.Key(gm.round, gm.game, team), loser[:n])
					if err != nil {
						return fmt.Errorf("%s: %w", d.id, err)
					}
					keystrokes.Add(1)
					if res.Changed {
						pushes.Add(1)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	stats.Keystrokes = int(keystrokes.Load())
	stats.Pushes = int(pushes.Load())

	stats.Converged = waitFor(ctx, cfg.Timeout, func() bool { return converged(devices, 2*stats.Games) })
	for _, d := range devices {
		stats.RemoteEdits += int(d.edits.Load())
	}
	if !stats.Converged {
		stats.Duration = time.Since(start)
		return stats, ErrDiverged
	}

	if err := devices[len(devices)-1].session.Finish(ctx); err != nil {
		return stats, fmt.Errorf("finish: %w", err)
	}
	stats.Finished = waitFor(ctx, cfg.Timeout, func() bool {
		for _, d := range devices {
			if !d.session.SyncStatus().Finished {
				return false
			}
		}
		return true
	})
	stats.Duration = time.Since(start)

	log.Info(ctx, "simulation done",
		logger.Int("keystrokes", stats.Keystrokes), logger.Int("pushes", stats.Pushes),
		logger.Int("remote_edits", stats.RemoteEdits), logger.Bool("finished", stats.Finished),
		logger.Duration("took", stats.Duration))
	return stats, nil
}

type gameRef struct{ round, game int }

// assign deals games round-robin so each game has exactly one scorer.
func assign(shape []int, devices int) [][]gameRef {
	plans := make([][]gameRef, devices)
	n := 0
	for r, games := range shape {
		for g := 0; g < games; g++ {
			plans[n%devices] = append(plans[n%devices], gameRef{r, g})
			n++
		}
	}
	return plans
}

// losingScore picks a score below W-1 whose final keystroke settles the game.
func losingScore(f *gofakeit.Faker, w int) string {
	lead := strconv.Itoa(w)[0]
	for {
		s := strconv.Itoa(f.Number(0, max(w-2, 0)))
		if len(s) == 2 || s[0] != lead {
			return s
		}
	}
}

// converged reports whether every board holds the same fields and all of them
// are filled.
func converged(devices []*device, fields int) bool {
	want := devices[0].session.Board().Snapshot()
	if len(want) != fields {
		return false
	}
	for _, d := range devices[1:] {
		if !maps.Equal(want, d.session.Board().Snapshot()) {
			return false
		}
	}
	return true
}

func waitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(settleCheckEvery)
	defer tick.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond()
		case <-tick.C:
		}
	}
}
