// Package app wires schedule generation, player arrangement, score entry and
// collaborative sync into one session a shell can drive.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/rally/internal/adapters/mq/queue"
	"github.com/okian/rally/internal/adapters/mq/worker"
	"github.com/okian/rally/internal/collab"
	"github.com/okian/rally/internal/domain/arrange"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/internal/domain/schedule"
	"github.com/okian/rally/internal/domain/scoring"
	"github.com/okian/rally/internal/domain/types"
	"github.com/okian/rally/pkg/clock"
	"github.com/okian/rally/pkg/logger"
)

const defaultCloseTimeout = 5 * time.Second

// Session is one device's view of a match: the schedule, its scores and,
// once invited or joined, the sync engine.
type Session struct {
	mu sync.Mutex

	roster   []model.Player
	gen      *schedule.Generator
	schedule model.Schedule
	report   schedule.Report
	arranger *arrange.Arranger
	board    *scoring.Board

	store  collab.Store
	engine *collab.Engine
	outbox *queue.InMemoryQueue
	pool   *worker.Pool

	// Configuration
	name         string
	winningScore int
	maxScore     int
	seed         *uint64
	maxAttempts  int
	clientID     string
	pollInterval time.Duration
	protectTTL   time.Duration
	outboxSize   int
	pushWorkers  int
	clock        clock.Clock
	notifier     collab.Notifier
	onComplete   func()

	closed bool
	logger logger.Logger
}

// New generates the schedule for roster and prepares the arranger and board.
// Sync is wired lazily by Invite or Join.
func New(roster []model.Player, roundTypes []model.RoundType, opts ...Option) *Session {
	s := &Session{
		roster:       append([]model.Player(nil), roster...),
		winningScore: scoring.DefaultWinningScore,
		outboxSize:   queue.DefaultCapacity,
		pushWorkers:  1,
		clock:        clock.Real(),
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	genOpts := []schedule.Option{schedule.WithLogger(s.logger.Named("schedule"))}
	if s.seed != nil {
		genOpts = append(genOpts, schedule.WithSeed(*s.seed))
	}
	if s.maxAttempts > 0 {
		genOpts = append(genOpts, schedule.WithMaxAttempts(s.maxAttempts))
	}
	s.gen = schedule.New(genOpts...)
	s.schedule, s.report = s.gen.Generate(s.roster, roundTypes)

	s.arranger = arrange.New(&s.schedule, arrange.WithLogger(s.logger.Named("arrange")))

	boardOpts := []scoring.Option{
		scoring.WithWinningScore(s.winningScore),
		scoring.WithLogger(s.logger.Named("scoring")),
	}
	if s.maxScore > 0 {
		boardOpts = append(boardOpts, scoring.WithMaxScore(s.maxScore))
	}
	if s.onComplete != nil {
		boardOpts = append(boardOpts, scoring.WithOnComplete(s.onComplete))
	}
	s.board = scoring.NewBoard(s.schedule.Shape(), boardOpts...)

	s.logger.Info(context.Background(), "session prepared",
		logger.Int("players", len(s.roster)),
		logger.Int("rounds", len(s.schedule)),
		logger.Int("fallbacks", s.report.Fallbacks()),
	)
	return s
}

// Schedule returns a copy of the current schedule.
func (s *Session) Schedule() model.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule.Clone()
}

// Report returns the generation report.
func (s *Session) Report() schedule.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Board exposes the score board for reads.
func (s *Session) Board() *scoring.Board { return s.board }

// Tap forwards a player tap to the arranger.
func (s *Session) Tap(slot model.Slot) arrange.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arranger.Tap(slot)
}

// Selected reports the slot awaiting a swap partner.
func (s *Session) Selected() (model.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arranger.Selected()
}

// BeginRename starts editing the name at slot and returns the current name.
func (s *Session) BeginRename(slot model.Slot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arranger.BeginRename(slot)
}

// CommitRename applies the edited name.
func (s *Session) CommitRename(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.arranger.CommitRename(name); err != nil {
		return err
	}
	s.syncRoster()
	return nil
}

// Rename renames the player at slot everywhere in the schedule.
func (s *Session) Rename(slot model.Slot, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.arranger.Rename(slot, name); err != nil {
		return err
	}
	s.syncRoster()
	return nil
}

// EnterScore applies a keystroke. Settled results are pushed to collaborators
// once a session is shared.
func (s *Session) EnterScore(ctx context.Context, key model.ScoreKey, value string) (scoring.Result, error) {
	res, err := s.board.Enter(key, value)
	if err != nil {
		return res, err
	}
	if !res.Changed {
		return res, nil
	}

	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil || !engine.Status().Initialized {
		return res, nil
	}
	if err := engine.PushScore(ctx, res.Round, res.Game, res.S1, res.S2); err != nil {
		s.logger.Debug(ctx, "score not pushed", logger.Error(err))
	}
	return res, nil
}

// Invite creates a remote session with the current scores and starts polling.
func (s *Session) Invite(ctx context.Context, name string) (types.Created, error) {
	engine, err := s.ensureEngine(ctx)
	if err != nil {
		return types.Created{}, err
	}
	if name == "" {
		name = s.name
	}

	s.mu.Lock()
	meta := types.SessionMeta{
		Name:         name,
		WinningScore: s.board.WinningScore(),
		Rounds:       len(s.schedule),
		Games:        s.schedule.Shape(),
	}
	s.mu.Unlock()

	created, err := engine.CreateSession(ctx, meta)
	if err != nil {
		return types.Created{}, fmt.Errorf("invite: %w", err)
	}
	return created, nil
}

// Join attaches to the session behind code. Local scores are replaced by the
// store's and the host's winning score is adopted.
func (s *Session) Join(ctx context.Context, code string) (types.Joined, error) {
	engine, err := s.ensureEngine(ctx)
	if err != nil {
		return types.Joined{}, err
	}
	joined, err := engine.JoinSession(ctx, code)
	if err != nil {
		return types.Joined{}, fmt.Errorf("join: %w", err)
	}
	if w := joined.Meta.WinningScore; w > 0 && w != s.board.WinningScore() {
		if err := s.board.SetWinningScore(w); err != nil {
			s.logger.Warn(ctx, "host winning score ignored", logger.Int("winning_score", w), logger.Error(err))
		}
	}
	if shape := s.board.Shape(); !sameShape(shape, joined.Meta.Games) {
		s.logger.Warn(ctx, "local schedule differs from host",
			logger.Any("local", shape), logger.Any("host", joined.Meta.Games))
	}
	return joined, nil
}

// Finish ends the match for everyone when shared, or freezes the local board.
func (s *Session) Finish(ctx context.Context) error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine != nil && engine.Status().Initialized {
		return engine.Finish(ctx)
	}
	s.board.Freeze()
	return nil
}

// SetWinningScore changes W for predictions on subsequent keystrokes.
func (s *Session) SetWinningScore(w int) error {
	return s.board.SetWinningScore(w)
}

// AddRound appends one generated round. The remote session's shape is fixed at
// creation, so rounds can only be added before sharing.
func (s *Session) AddRound(rt model.RoundType) (model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil && s.engine.Status().Initialized {
		return model.Round{}, ErrShared
	}

	round, rr := s.gen.NextRound(s.roster, rt, len(s.schedule))
	s.schedule = append(s.schedule, round)
	s.report.Rounds = append(s.report.Rounds, rr)
	s.board.Extend(len(round.Games))
	return round, nil
}

// SyncStatus returns the sync session snapshot. It is zero before Invite or Join.
func (s *Session) SyncStatus() collab.Status {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil {
		return collab.Status{}
	}
	return engine.Status()
}

// Close stops polling and drains pending pushes.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	engine, pool := s.engine, s.pool
	s.mu.Unlock()

	if engine != nil {
		engine.Stop()
	}
	if pool == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCloseTimeout)
		defer cancel()
	}
	if err := pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("drain outbox: %w", err)
	}
	return nil
}

func (s *Session) ensureEngine(ctx context.Context) (*collab.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return nil, ErrClosed
	case s.store == nil:
		return nil, ErrNoStore
	case s.engine != nil:
		return s.engine, nil
	}

	s.outbox = queue.NewInMemoryQueue(queue.WithCapacity(s.outboxSize))

	opts := []collab.Option{
		collab.WithClock(s.clock),
		collab.WithLogger(s.logger.Named("collab")),
		collab.WithOutbox(s.outbox),
	}
	if s.clientID != "" {
		opts = append(opts, collab.WithClientID(s.clientID))
	}
	if s.pollInterval > 0 {
		opts = append(opts, collab.WithPollInterval(s.pollInterval))
	}
	if s.protectTTL > 0 {
		opts = append(opts, collab.WithProtectTTL(s.protectTTL))
	}
	if s.notifier != nil {
		opts = append(opts, collab.WithNotifier(s.notifier))
	}
	s.engine = collab.New(s.store, s.board, opts...)

	s.pool = worker.NewPool(s.pushWorkers, s.outbox, s.engine,
		worker.WithName("outbox"), worker.WithLogger(s.logger))
	s.pool.Start(context.WithoutCancel(ctx))
	return s.engine, nil
}

// syncRoster keeps generated rounds using current names after a rename.
func (s *Session) syncRoster() {
	names := make(map[string]string)
	for _, r := range s.schedule {
		for _, g := range r.Games {
			for _, p := range g.Players() {
				names[p.ID] = p.Name
			}
		}
		for _, p := range r.Byes {
			names[p.ID] = p.Name
		}
	}
	for i, p := range s.roster {
		if n, ok := names[p.ID]; ok {
			s.roster[i].Name = n
		}
	}
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
