package repository

import (
	"context"
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rally/internal/domain/types"
	"github.com/okian/rally/pkg/clock"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

// ShareCodeChars avoids visually ambiguous characters.
const ShareCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeAttempts = 10

type gameKey struct{ round, game int }

// session is one live match held by the store.
type session struct {
	id         string
	code       string
	meta       types.SessionMeta
	status     types.SessionStatus
	scores     map[gameKey]types.GameScore
	seen       map[string]time.Time // client id -> last request
	latest     int64
	finishedAt time.Time
}

// MemoryStore implements Store in memory. Sessions live until the process
// exits or, once finished, until the retention window passes.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session // by share code
	lastTS   int64

	codeLength            int
	presence              time.Duration
	retention             time.Duration
	metricsUpdateInterval time.Duration
	clock                 clock.Clock
	log                   logger.Logger

	upserts atomic.Int64
	polls   atomic.Int64

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs a store and starts its background maintenance loop.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:              make(map[string]*session),
		codeLength:            6,
		presence:              10 * time.Second,
		retention:             2 * time.Hour,
		metricsUpdateInterval: 5 * time.Second,
		clock:                 clock.Real(),
		log:                   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMaintenance(ctx)
	return s
}

// CreateSession implements Store.
func (s *MemoryStore) CreateSession(ctx context.Context, meta types.SessionMeta) (types.Created, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := ""
	for i := 0; i < codeAttempts; i++ {
		c := s.generateCode()
		if _, exists := s.sessions[c]; !exists {
			code = c
			break
		}
	}
	if code == "" {
		return types.Created{}, ErrCodeSpace
	}
	if meta.Rounds == 0 {
		meta.Rounds = len(meta.Games)
	}

	sess := &session{
		id:     uuid.NewString(),
		code:   code,
		meta:   meta,
		status: types.StatusActive,
		scores: make(map[gameKey]types.GameScore),
		seen:   make(map[string]time.Time),
	}
	s.sessions[code] = sess
	metrics.UpdateActiveSessions(s.activeLocked())

	s.log.Info(ctx, "session created",
		logger.String("share_code", code), logger.String("session_id", sess.id),
		logger.String("name", meta.Name), logger.Int("rounds", meta.Rounds))
	return types.Created{SessionID: sess.id, ShareCode: code}, nil
}

// JoinSession implements Store.
func (s *MemoryStore) JoinSession(ctx context.Context, code, clientID string) (types.Joined, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[normalize(code)]
	if !ok {
		return types.Joined{}, ErrNotFound
	}
	now := s.clock.Now()
	s.touch(sess, clientID, now)

	scores := make([]types.GameScore, 0, len(sess.scores))
	for _, gs := range sess.scores {
		scores = append(scores, gs)
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Round != scores[j].Round {
			return scores[i].Round < scores[j].Round
		}
		return scores[i].Game < scores[j].Game
	})

	s.log.Debug(ctx, "session joined",
		logger.String("share_code", sess.code), logger.String("client_id", clientID),
		logger.Int("scores", len(scores)))
	return types.Joined{
		SessionID:       sess.id,
		ShareCode:       sess.code,
		Meta:            sess.meta,
		Scores:          scores,
		LatestTimestamp: sess.latest,
		Connected:       s.connected(sess, now),
		Status:          sess.status,
	}, nil
}

// UpsertScores implements Store.
func (s *MemoryStore) UpsertScores(_ context.Context, u types.ScoreUpsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[normalize(u.ShareCode)]
	switch {
	case !ok:
		return ErrNotFound
	case u.SessionID != "" && u.SessionID != sess.id:
		return ErrSessionMismatch
	case sess.status == types.StatusFinished:
		return ErrFinished
	case !sess.fits(u):
		return ErrInvalidScore
	}

	now := s.clock.Now()
	s.touch(sess, u.ClientID, now)
	ts := s.next(now)
	sess.scores[gameKey{u.Round, u.Game}] = u.Score(ts)
	sess.latest = ts

	s.upserts.Add(1)
	metrics.RecordStoreUpsert()
	return nil
}

// PollUpdates implements Store. Updates are ordered by timestamp.
func (s *MemoryStore) PollUpdates(_ context.Context, code, clientID string, since int64) (types.PollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[normalize(code)]
	if !ok {
		return types.PollResult{}, ErrNotFound
	}
	now := s.clock.Now()
	s.touch(sess, clientID, now)
	s.polls.Add(1)

	res := types.PollResult{
		Updates:         []types.GameScore{},
		LatestTimestamp: max(since, sess.latest),
		ConnectedCount:  s.connected(sess, now),
		Status:          sess.status,
	}
	for _, gs := range sess.scores {
		if gs.UpdatedAt > since {
			res.Updates = append(res.Updates, gs)
		}
	}
	sort.Slice(res.Updates, func(i, j int) bool { return res.Updates[i].UpdatedAt < res.Updates[j].UpdatedAt })
	return res, nil
}

// FinishSession implements Store.
func (s *MemoryStore) FinishSession(ctx context.Context, code, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[normalize(code)]
	switch {
	case !ok:
		return ErrNotFound
	case sessionID != "" && sessionID != sess.id:
		return ErrSessionMismatch
	case sess.status == types.StatusFinished:
		return nil
	}
	sess.status = types.StatusFinished
	sess.finishedAt = s.clock.Now()
	metrics.UpdateActiveSessions(s.activeLocked())

	s.log.Info(ctx, "session finished", logger.String("share_code", sess.code))
	return nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Stats{
		Sessions:       len(s.sessions),
		ActiveSessions: s.activeLocked(),
		Upserts:        s.upserts.Load(),
		Polls:          s.polls.Load(),
	}
}

// Count returns the number of sessions held, finished ones included.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the maintenance loop.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Sweep removes finished sessions past retention and returns how many went.
func (s *MemoryStore) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for code, sess := range s.sessions {
		if sess.status == types.StatusFinished && now.Sub(sess.finishedAt) >= s.retention {
			delete(s.sessions, code)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug(ctx, "finished sessions removed", logger.Int("count", removed))
	}
	return removed
}

func (s *MemoryStore) startMaintenance(ctx context.Context) {
	ticker := s.clock.NewTicker(s.metricsUpdateInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C():
				s.Sweep(ctx)
				s.mu.RLock()
				metrics.UpdateActiveSessions(s.activeLocked())
				s.mu.RUnlock()
			}
		}
	}()
}

// next returns a timestamp strictly greater than any issued before.
func (s *MemoryStore) next(now time.Time) int64 {
	ts := now.UnixMilli()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

func (s *MemoryStore) touch(sess *session, clientID string, now time.Time) {
	if clientID != "" {
		sess.seen[clientID] = now
	}
}

func (s *MemoryStore) connected(sess *session, now time.Time) int {
	n := 0
	for _, at := range sess.seen {
		if now.Sub(at) < s.presence {
			n++
		}
	}
	return n
}

func (s *MemoryStore) activeLocked() int {
	n := 0
	for _, sess := range s.sessions {
		if sess.status == types.StatusActive {
			n++
		}
	}
	return n
}

func (s *MemoryStore) generateCode() string {
	b := make([]byte, s.codeLength)
	_, _ = rand.Read(b)

	code := make([]byte, s.codeLength)
	for i := range code {
		code[i] = ShareCodeChars[int(b[i])%len(ShareCodeChars)]
	}
	return string(code)
}

// fits checks the upsert against the declared shape, when one was declared.
func (sess *session) fits(u types.ScoreUpsert) bool {
	if u.Round < 0 || u.Game < 0 || len(u.S1) > 2 || len(u.S2) > 2 {
		return false
	}
	if len(sess.meta.Games) == 0 {
		return true
	}
	return u.Round < len(sess.meta.Games) && u.Game < sess.meta.Games[u.Round]
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
