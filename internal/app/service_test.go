package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rally/internal/adapters/repository"
	"github.com/okian/rally/internal/app"
	"github.com/okian/rally/internal/collab"
	"github.com/okian/rally/internal/config"
	"github.com/okian/rally/internal/domain/arrange"
	"github.com/okian/rally/internal/domain/model"
)

func club() []model.Player {
	var ps []model.Player
	for i := 0; i < 4; i++ {
		ps = append(ps,
			model.Player{ID: fmt.Sprintf("m%d", i), Name: fmt.Sprintf("M%d", i), Gender: model.Male},
			model.Player{ID: fmt.Sprintf("f%d", i), Name: fmt.Sprintf("F%d", i), Gender: model.Female},
		)
	}
	return ps
}

var plan = []model.RoundType{model.Mixed, model.Mixer}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return check()
}

func TestLocalSession(t *testing.T) {
	Convey("Given a session without a store", t, func() {
		ctx := context.Background()
		s := app.New(club(), plan, app.WithSeed(7))
		defer func() { _ = s.Close(ctx) }()

		Convey("Then the schedule and board should share a shape", func() {
			sched := s.Schedule()
			So(sched.Shape(), ShouldResemble, []int{2, 2})
			So(s.Board().Shape(), ShouldResemble, []int{2, 2})
			So(sched.Validate(), ShouldBeNil)
			So(s.Report().Rounds, ShouldHaveLength, 2)
		})

		Convey("When two players in one round are tapped", func() {
			before := s.Schedule()
			first := model.Slot{Round: 0, Game: 0, Team: 0, Pos: 0}
			second := model.Slot{Round: 0, Game: 1, Team: 1, Pos: 1}
			So(s.Tap(first).Action, ShouldEqual, arrange.ActionSelected)
			_, selected := s.Selected()
			So(selected, ShouldBeTrue)
			out := s.Tap(second)

			Convey("Then they should swap", func() {
				So(out.Action, ShouldEqual, arrange.ActionSwapped)
				after := s.Schedule()
				So(after[0].Games[0].Team1[0], ShouldResemble, before[0].Games[1].Team2[1])
				So(after[0].Games[1].Team2[1], ShouldResemble, before[0].Games[0].Team1[0])
			})
		})

		Convey("When a player is renamed and a round added", func() {
			slot := model.Slot{Round: 0, Game: 0, Team: 0, Pos: 0}
			id := s.Schedule()[0].Games[0].Team1[0].ID
			current, err := s.BeginRename(slot)
			So(err, ShouldBeNil)
			So(current, ShouldNotBeEmpty)
			So(s.CommitRename("  Zed "), ShouldBeNil)
			round, err := s.AddRound(model.Mixer)
			So(err, ShouldBeNil)

			Convey("Then the new round should use the new name", func() {
				So(round.ID, ShouldEqual, "round-3")
				found := false
				for _, p := range round.PlayerIDs() {
					if p == id {
						found = true
					}
				}
				So(found, ShouldBeTrue)
				for _, g := range round.Games {
					for _, p := range g.Players() {
						if p.ID == id {
							So(p.Name, ShouldEqual, "Zed")
						}
					}
				}
				So(s.Board().Shape(), ShouldResemble, []int{2, 2, 2})
			})
		})

		Convey("When a score is entered", func() {
			res, err := s.EnterScore(ctx, model.Key(0, 0, 1), "6")

			Convey("Then it should settle locally", func() {
				So(err, ShouldBeNil)
				So(res.Changed, ShouldBeTrue)
				So(res.S2, ShouldEqual, "11")
				So(s.SyncStatus().Initialized, ShouldBeFalse)
			})
		})

		Convey("When sharing is attempted", func() {
			_, err := s.Invite(ctx, "solo")

			Convey("Then it should need a store", func() {
				So(errors.Is(err, app.ErrNoStore), ShouldBeTrue)
			})
		})

		Convey("When the match is finished locally", func() {
			So(s.Finish(ctx), ShouldBeNil)

			Convey("Then the board should be frozen", func() {
				So(s.Board().Frozen(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a session built from config", t, func() {
		cfg := config.New()
		cfg.WinningScore = 21
		s := app.New(club(), plan, app.FromConfig(cfg))

		Convey("Then the board should play to the configured score", func() {
			So(s.Board().WinningScore(), ShouldEqual, 21)
		})
	})
}

func TestSharedSession(t *testing.T) {
	Convey("Given a host and a guest on one store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx, repository.WithMetricsUpdateInterval(time.Hour))
		defer func() { _ = store.Close() }()

		opts := []app.Option{app.WithStore(store), app.WithSeed(42), app.WithPollInterval(10 * time.Millisecond)}
		completed := make(chan struct{}, 1)
		host := app.New(club(), plan, append(opts, app.WithClientID("host"), app.WithWinningScore(15),
			app.WithOnComplete(func() { completed <- struct{}{} }))...)
		guest := app.New(club(), plan, append(opts, app.WithClientID("guest"))...)
		defer func() { _ = host.Close(ctx) }()
		defer func() { _ = guest.Close(ctx) }()

		_, _ = host.EnterScore(ctx, model.Key(0, 0, 1), "6")
		created, err := host.Invite(ctx, "club night")
		So(err, ShouldBeNil)
		joined, err := guest.Join(ctx, created.ShareCode)
		So(err, ShouldBeNil)

		Convey("Then the guest should adopt the host's scores and winning score", func() {
			So(joined.Meta.Name, ShouldEqual, "club night")
			So(guest.Board().Get(model.Key(0, 0, 2)), ShouldEqual, "15")
			So(guest.Board().WinningScore(), ShouldEqual, 15)
			So(host.SyncStatus().Role, ShouldEqual, collab.RoleCreator)
			So(guest.SyncStatus().Role, ShouldEqual, collab.RoleJoiner)
		})

		Convey("When the host keeps scoring", func() {
			res, err := host.EnterScore(ctx, model.Key(1, 1, 2), "9")
			So(err, ShouldBeNil)
			So(res.Changed, ShouldBeTrue)

			Convey("Then the guest should converge through the outbox and poll loop", func() {
				So(eventually(func() bool {
					return guest.Board().Get(model.Key(1, 1, 1)) == "15"
				}), ShouldBeTrue)
			})
		})

		Convey("When a round is added after sharing", func() {
			_, err := host.AddRound(model.Mixed)

			Convey("Then it should be refused", func() {
				So(errors.Is(err, app.ErrShared), ShouldBeTrue)
			})
		})

		Convey("When the guest finishes the match", func() {
			So(guest.Finish(ctx), ShouldBeNil)

			Convey("Then the host should observe it and freeze", func() {
				So(eventually(func() bool { return host.SyncStatus().Finished }), ShouldBeTrue)
				_, err := host.EnterScore(ctx, model.Key(0, 1, 1), "3")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the host closes", func() {
			So(host.Close(ctx), ShouldBeNil)
			So(host.Close(ctx), ShouldBeNil)

			Convey("Then its poll loop should have stopped", func() {
				So(host.SyncStatus().Polling, ShouldBeFalse)
			})
		})
	})

	Convey("Given a closed session", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx, repository.WithMetricsUpdateInterval(time.Hour))
		defer func() { _ = store.Close() }()
		s := app.New(club(), plan, app.WithStore(store))
		So(s.Close(ctx), ShouldBeNil)

		Convey("Then joining should fail", func() {
			_, err := s.Join(ctx, "ABCDEF")
			So(errors.Is(err, app.ErrClosed), ShouldBeTrue)
		})
	})
}
