// Package schedule turns a roster and a list of round types into doubles rounds.
//
// Every round is built from shuffled pools sliced into groups of four. A group
// must not pit an all-male team against an all-female team and, while retries
// last, must not repeat a partnership already in the session history. When the
// retry budget is spent the last shuffle is accepted and only the gender rule is
// repaired. Generation never fails.
package schedule

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

const defaultMaxAttempts = 200

// RoundReport describes how one round was produced.
type RoundReport struct {
	Index    int
	Type     model.RoundType
	Attempts int
	Fallback bool // a pool exhausted its retries
	Repaired int  // games fixed by exchanging partners
}

// Report collects the per-round reports of a Generate call.
type Report struct {
	Rounds []RoundReport
}

// Fallbacks counts rounds that accepted a soft-rule violation.
func (r Report) Fallbacks() int {
	n := 0
	for _, rr := range r.Rounds {
		if rr.Fallback {
			n++
		}
	}
	return n
}

// Generator produces rounds and owns the partner history they accumulate.
type Generator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	maxAttempts int
	history     *History
	log         logger.Logger
}

// New creates a Generator. Without WithRand or WithSeed it seeds from the wall clock.
func New(opts ...Option) *Generator {
	g := &Generator{
		maxAttempts: defaultMaxAttempts,
		history:     NewHistory(),
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		seed := uint64(time.Now().UnixNano())
		g.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return g
}

// History returns a snapshot of the accumulated partner and bye counts. Later
// rounds do not change it.
func (g *Generator) History() *History {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.history.clone()
}

// Generate builds one round per requested type, in order.
func (g *Generator) Generate(roster []model.Player, types []model.RoundType) (model.Schedule, Report) {
	sched := make(model.Schedule, 0, len(types))
	report := Report{Rounds: make([]RoundReport, 0, len(types))}
	for i, rt := range types {
		r, rr := g.NextRound(roster, rt, i)
		sched = append(sched, r)
		report.Rounds = append(report.Rounds, rr)
	}
	return sched, report
}

// NextRound builds the round at position index and records it in the history.
func (g *Generator) NextRound(roster []model.Player, rt model.RoundType, index int) (model.Round, RoundReport) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rr := RoundReport{Index: index, Type: rt}
	var games []model.Game
	var byes []model.Player

	switch rt {
	case model.Mixed:
		games, byes = g.mixed(roster, &rr)
	case model.SameGender:
		games, byes = g.sameGender(roster, &rr)
	case model.Mixer:
		games, byes = g.pool(slices.Clone(roster), &rr)
	default:
		g.log.Warn(context.Background(), "unknown round type, using mixer",
			logger.String("type", string(rt)), logger.Int("round", index))
		rr.Type = model.Mixer
		games, byes = g.pool(slices.Clone(roster), &rr)
	}

	round := model.Round{
		ID:    fmt.Sprintf("round-%d", index+1),
		Type:  rr.Type,
		Games: games,
		Byes:  byes,
	}
	for i := range round.Games {
		round.Games[i].ID = fmt.Sprintf("%s-game-%d", round.ID, i+1)
	}
	g.history.record(round)

	if rr.Fallback {
		g.log.Warn(context.Background(), "round accepted with repeated partners",
			logger.Int("round", index), logger.String("type", string(rr.Type)),
			logger.Int("attempts", rr.Attempts), logger.Int("repaired", rr.Repaired))
	}
	metrics.RecordRoundGenerated(string(rr.Type), rr.Fallback)
	metrics.RecordShuffleAttempts(rr.Attempts)
	metrics.RecordByes(len(byes))
	return round, rr
}

// mixed pairs one male with one female on every team.
func (g *Generator) mixed(roster []model.Player, rr *RoundReport) ([]model.Game, []model.Player) {
	males, females, unknown := split(roster)
	n := min(len(males), len(females)) / 2

	var games []model.Game
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		rr.Attempts++
		g.shuffle(males)
		g.shuffle(females)
		games = make([]model.Game, 0, n)
		for k := 0; k < n; k++ {
			games = append(games, model.Game{
				Team1: model.Team{males[2*k], females[2*k]},
				Team2: model.Team{males[2*k+1], females[2*k+1]},
			})
		}
		if g.fresh(games) {
			break
		}
		if attempt == g.maxAttempts {
			rr.Fallback = true
		}
	}

	byes := make([]model.Player, 0, len(roster)-4*n)
	byes = append(byes, males[2*n:]...)
	byes = append(byes, females[2*n:]...)
	byes = append(byes, unknown...)
	return games, byes
}

// sameGender runs the pool algorithm per gender, then once more over the
// combined leftovers.
func (g *Generator) sameGender(roster []model.Player, rr *RoundReport) ([]model.Game, []model.Player) {
	males, females, unknown := split(roster)

	mg, mrest := g.pool(males, rr)
	fg, frest := g.pool(females, rr)

	rest := make([]model.Player, 0, len(mrest)+len(frest)+len(unknown))
	rest = append(rest, mrest...)
	rest = append(rest, frest...)
	rest = append(rest, unknown...)
	xg, byes := g.pool(rest, rr)

	games := make([]model.Game, 0, len(mg)+len(fg)+len(xg))
	games = append(games, mg...)
	games = append(games, fg...)
	games = append(games, xg...)
	return games, byes
}

// pool is the generic shuffle-and-validate algorithm. It may reorder players.
func (g *Generator) pool(players []model.Player, rr *RoundReport) ([]model.Game, []model.Player) {
	n := len(players) / 4 * 4
	if n == 0 {
		return nil, players
	}

	var games []model.Game
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		rr.Attempts++
		g.shuffle(players)
		games = group(players[:n])
		if g.valid(games) {
			return games, players[n:]
		}
	}

	rr.Fallback = true
	for i := range games {
		if games[i].GenderClash() {
			// MM vs FF becomes MF vs MF.
			games[i].Team1[1], games[i].Team2[0] = games[i].Team2[0], games[i].Team1[1]
			rr.Repaired++
		}
	}
	return games, players[n:]
}

// shuffle permutes players, then moves those with more past byes to the front
// so they are less likely to sit out again.
func (g *Generator) shuffle(players []model.Player) {
	g.rng.Shuffle(len(players), func(i, j int) { players[i], players[j] = players[j], players[i] })
	slices.SortStableFunc(players, func(a, b model.Player) int {
		return g.history.Byes(b.ID) - g.history.Byes(a.ID)
	})
}

func (g *Generator) valid(games []model.Game) bool {
	for _, gm := range games {
		if gm.GenderClash() {
			return false
		}
	}
	return g.fresh(games)
}

func (g *Generator) fresh(games []model.Game) bool {
	for _, gm := range games {
		if g.history.repeats(gm.Team1) || g.history.repeats(gm.Team2) {
			return false
		}
	}
	return true
}

func group(players []model.Player) []model.Game {
	games := make([]model.Game, 0, len(players)/4)
	for i := 0; i+4 <= len(players); i += 4 {
		games = append(games, model.Game{
			Team1: model.Team{players[i], players[i+1]},
			Team2: model.Team{players[i+2], players[i+3]},
		})
	}
	return games
}

func split(roster []model.Player) (males, females, unknown []model.Player) {
	for _, p := range roster {
		switch p.Gender {
		case model.Male:
			males = append(males, p)
		case model.Female:
			females = append(females, p)
		default:
			unknown = append(unknown, p)
		}
	}
	return males, females, unknown
}
