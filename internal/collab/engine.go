// Package collab replicates score changes between devices through a remote
// session store.
//
// One device creates a session and pushes its current scores; others join by
// share code and replace their local scores with the store's. After setup all
// devices push their own settled keystrokes and poll for the rest. Conflicts
// resolve last-writer-wins per field, except that a field typed locally is
// protected from polled values for a short window.
package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/internal/domain/protect"
	"github.com/okian/rally/internal/domain/types"
	"github.com/okian/rally/pkg/clock"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

const (
	tracerName          = "github.com/okian/rally/internal/collab"
	defaultPollInterval = 3 * time.Second
	batchConcurrency    = 4
)

// Store is the remote session store as seen by a device.
type Store interface {
	CreateSession(ctx context.Context, meta types.SessionMeta) (types.Created, error)
	JoinSession(ctx context.Context, code, clientID string) (types.Joined, error)
	UpsertScores(ctx context.Context, u types.ScoreUpsert) error
	PollUpdates(ctx context.Context, code, clientID string, since int64) (types.PollResult, error)
	FinishSession(ctx context.Context, code, sessionID string) error
}

// Scores is the local score map the engine reads and writes.
type Scores interface {
	Apply(key model.ScoreKey, value string) bool
	Replace(scores []types.GameScore) int
	Entered() []types.GameScore
	Freeze()
}

// Outbox queues pushes for asynchronous delivery. Enqueue reports false when
// the upsert was dropped.
type Outbox interface {
	Enqueue(ctx context.Context, u types.ScoreUpsert) bool
}

// Notifier receives the signals a shell turns into notices and navigation.
type Notifier interface {
	// CollaboratorUpdated is raised after a poll applied remote values.
	CollaboratorUpdated(keys []model.ScoreKey)
	// MatchFinished is raised once when any participant finished the session.
	MatchFinished()
}

// Role distinguishes the session creator from joiners. It only matters at setup.
type Role string

// Roles.
const (
	RoleNone    Role = ""
	RoleCreator Role = "creator"
	RoleJoiner  Role = "joiner"
)

// Status is a snapshot of the sync session.
type Status struct {
	ShareCode   string
	SessionID   string
	ClientID    string
	Role        Role
	LastSeen    int64
	Connected   int
	Initialized bool
	Polling     bool
	Finished    bool
}

// Engine is the per-device synchronisation engine.
type Engine struct {
	mu     sync.Mutex
	status Status

	store    Store
	scores   Scores
	guard    protect.Guard
	outbox   Outbox
	notifier Notifier

	clock        clock.Clock
	log          logger.Logger
	tracer       trace.Tracer
	pollInterval time.Duration
	protectTTL   time.Duration

	cancel     context.CancelFunc
	done       chan struct{}
	finishOnce sync.Once
}

// New creates an engine over a store and the local score map.
func New(store Store, scores Scores, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		scores:       scores,
		notifier:     nopNotifier{},
		clock:        clock.Real(),
		log:          logger.Nop(),
		pollInterval: defaultPollInterval,
		protectTTL:   protect.DefaultTTL,
	}
	e.status.ClientID = uuid.NewString()
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	if e.guard == nil {
		e.guard = protect.NewInMemoryGuard(protect.WithClock(e.clock), protect.WithTTL(e.protectTTL))
	}
	return e
}

// Status returns a snapshot of the sync session.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// ClientID identifies this device to the store.
func (e *Engine) ClientID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.ClientID
}

// CreateSession allocates a remote session, pushes every entered score and
// starts polling. On failure the engine stays uninitialised and may be retried.
func (e *Engine) CreateSession(ctx context.Context, meta types.SessionMeta) (types.Created, error) {
	ctx, span := e.tracer.Start(ctx, "collab.CreateSession", trace.WithAttributes(
		attribute.String("session.name", meta.Name),
	))
	defer span.End()

	if e.Status().Initialized {
		return types.Created{}, ErrAlreadyInitialized
	}

	created, err := e.store.CreateSession(ctx, meta)
	if err != nil {
		return types.Created{}, e.fail(ctx, span, "create session failed", fmt.Errorf("%w: %w", ErrCreate, err))
	}

	entered := e.scores.Entered()
	clientID := e.ClientID()
	now := e.clock.Now().UnixMilli()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, gs := range entered {
		u := types.ScoreUpsert{
			ShareCode: created.ShareCode,
			SessionID: created.SessionID,
			ClientID:  clientID,
			Round:     gs.Round,
			Game:      gs.Game,
			S1:        gs.S1,
			S2:        gs.S2,
			ClientTS:  now,
		}
		g.Go(func() error { return e.store.UpsertScores(gctx, u) })
	}
	if err := g.Wait(); err != nil {
		return types.Created{}, e.fail(ctx, span, "initial score batch failed", fmt.Errorf("%w: initial scores: %w", ErrCreate, err))
	}

	e.mu.Lock()
	e.status.ShareCode = created.ShareCode
	e.status.SessionID = created.SessionID
	e.status.Role = RoleCreator
	e.status.Initialized = true
	e.mu.Unlock()

	span.SetAttributes(attribute.String("session.code", created.ShareCode), attribute.Int("scores.pushed", len(entered)))
	metrics.RecordSessionCreated()
	e.log.Info(ctx, "session created",
		logger.String("share_code", created.ShareCode), logger.Int("scores", len(entered)))

	e.startPolling()
	return created, nil
}

// JoinSession attaches to an existing session, replaces the local scores with
// the store's full set and starts polling.
func (e *Engine) JoinSession(ctx context.Context, code string) (types.Joined, error) {
	ctx, span := e.tracer.Start(ctx, "collab.JoinSession", trace.WithAttributes(
		attribute.String("session.code", code),
	))
	defer span.End()

	if e.Status().Initialized {
		return types.Joined{}, ErrAlreadyInitialized
	}

	joined, err := e.store.JoinSession(ctx, code, e.ClientID())
	if err != nil {
		return types.Joined{}, e.fail(ctx, span, "join session failed", fmt.Errorf("%w: %w", ErrJoin, err))
	}

	if skipped := e.scores.Replace(joined.Scores); skipped > 0 {
		e.log.Warn(ctx, "joined scores outside local schedule", logger.Int("skipped", skipped))
	}

	e.mu.Lock()
	e.status.ShareCode = joined.ShareCode
	e.status.SessionID = joined.SessionID
	e.status.Role = RoleJoiner
	e.status.LastSeen = joined.LatestTimestamp
	e.status.Connected = joined.Connected
	e.status.Initialized = true
	e.mu.Unlock()

	metrics.RecordSessionJoined()
	metrics.UpdateConnectedCount(joined.Connected)
	e.log.Info(ctx, "session joined",
		logger.String("share_code", joined.ShareCode), logger.Int("scores", len(joined.Scores)),
		logger.Int("connected", joined.Connected))

	if joined.Status == types.StatusFinished {
		e.finish(ctx)
		return joined, nil
	}
	e.startPolling()
	return joined, nil
}

// PushScore protects both fields of the game and sends the settled pair.
// Delivery goes through the outbox when one is configured. Failures are
// logged, never returned; the next keystroke or poll reconciles.
func (e *Engine) PushScore(ctx context.Context, round, game int, s1, s2 string) error {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	switch {
	case !st.Initialized:
		return ErrNotInitialized
	case st.Finished:
		return ErrFinished
	}

	e.guard.Protect(ctx, model.Key(round, game, 1), model.Key(round, game, 2))

	u := types.ScoreUpsert{
		ShareCode: st.ShareCode,
		SessionID: st.SessionID,
		ClientID:  st.ClientID,
		Round:     round,
		Game:      game,
		S1:        s1,
		S2:        s2,
		ClientTS:  e.clock.Now().UnixMilli(),
	}
	if e.outbox == nil {
		_ = e.Deliver(ctx, u)
		return nil
	}
	if !e.outbox.Enqueue(ctx, u) {
		e.log.Warn(ctx, "score push dropped", logger.Int("round", round), logger.Int("game", game))
	}
	return nil
}

// Deliver sends one upsert to the store. It is the outbox worker's processor.
func (e *Engine) Deliver(ctx context.Context, u types.ScoreUpsert) error {
	ctx, span := e.tracer.Start(ctx, "collab.Deliver", trace.WithAttributes(
		attribute.Int("round", u.Round), attribute.Int("game", u.Game),
	))
	defer span.End()

	start := e.clock.Now()
	if err := e.store.UpsertScores(ctx, u); err != nil {
		metrics.RecordPushError()
		return e.fail(ctx, span, "score push failed", fmt.Errorf("%w: %w", ErrPush, err))
	}
	metrics.RecordPush()
	metrics.RecordSyncLatency("push", float64(e.clock.Now().Sub(start).Milliseconds()))
	return nil
}

// Poll fetches updates since the last seen timestamp and applies every field
// that is non-empty, differs from the local value and is not protected. A
// finished session stops polling and freezes the scores instead.
func (e *Engine) Poll(ctx context.Context) error {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	if !st.Initialized || st.Finished {
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "collab.Poll", trace.WithAttributes(
		attribute.String("session.code", st.ShareCode), attribute.Int64("since", st.LastSeen),
	))
	defer span.End()

	start := e.clock.Now()
	res, err := e.store.PollUpdates(ctx, st.ShareCode, st.ClientID, st.LastSeen)
	if err != nil {
		metrics.RecordPollError()
		return e.fail(ctx, span, "poll failed", fmt.Errorf("%w: %w", ErrPoll, err))
	}
	metrics.RecordPoll()
	metrics.RecordSyncLatency("poll", float64(e.clock.Now().Sub(start).Milliseconds()))

	if res.Finished() {
		e.finish(ctx)
		return nil
	}

	newest := max(st.LastSeen, res.LatestTimestamp)
	var applied []model.ScoreKey
	for _, gs := range res.Updates {
		newest = max(newest, gs.UpdatedAt)
		for team, value := range [2]string{gs.S1, gs.S2} {
			key := model.Key(gs.Round, gs.Game, team+1)
			if value == "" {
				continue
			}
			if e.guard.Protected(ctx, key) {
				metrics.RecordProtectedSkip()
				continue
			}
			if e.scores.Apply(key, value) {
				applied = append(applied, key)
			}
		}
	}
	e.guard.Sweep(ctx)

	e.mu.Lock()
	e.status.LastSeen = max(e.status.LastSeen, newest)
	e.status.Connected = res.ConnectedCount
	e.mu.Unlock()
	metrics.UpdateConnectedCount(res.ConnectedCount)

	if len(applied) > 0 {
		span.SetAttributes(attribute.Int("fields.applied", len(applied)))
		metrics.RecordRemoteApplied(len(applied))
		e.log.Debug(ctx, "collaborator scores applied", logger.Int("fields", len(applied)))
		e.notifier.CollaboratorUpdated(applied)
	}
	return nil
}

// Finish marks the remote session finished and then behaves as if the finish
// had been observed by a poll.
func (e *Engine) Finish(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "collab.Finish")
	defer span.End()

	st := e.Status()
	if !st.Initialized {
		return ErrNotInitialized
	}
	if err := e.store.FinishSession(ctx, st.ShareCode, st.SessionID); err != nil {
		return e.fail(ctx, span, "finish failed", fmt.Errorf("%w: %w", ErrFinish, err))
	}
	e.finish(ctx)
	return nil
}

// Stop ends polling. It does not wait for an in-flight poll.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Done is closed when the poll loop has exited. It is nil before polling starts.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *Engine) finish(ctx context.Context) {
	e.finishOnce.Do(func() {
		e.mu.Lock()
		e.status.Finished = true
		e.stopLocked()
		e.mu.Unlock()

		e.scores.Freeze()
		metrics.RecordMatchFinished()
		e.log.Info(ctx, "match finished", logger.String("share_code", e.Status().ShareCode))
		e.notifier.MatchFinished()
	})
}

func (e *Engine) startPolling() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil || e.status.Finished {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := e.clock.NewTicker(e.pollInterval)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	e.status.Polling = true

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				// Stop must not cancel a poll already on the wire.
				_ = e.Poll(context.WithoutCancel(ctx))
			}
		}
	}()
}

func (e *Engine) stopLocked() {
	if e.cancel != nil {
		e.cancel()
	}
	e.status.Polling = false
}

// fail records err on the span, logs it and returns it.
func (e *Engine) fail(ctx context.Context, span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	metrics.RecordErrorByComponent("collab", msg)
	e.log.Warn(ctx, msg, logger.Error(err))
	return err
}

type nopNotifier struct{}

func (nopNotifier) CollaboratorUpdated([]model.ScoreKey) {}
func (nopNotifier) MatchFinished()                       {}
