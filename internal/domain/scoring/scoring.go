// Package scoring owns per-game score strings and the keystroke rules that
// predict the opposing score and move input focus.
//
// Each game has two fields holding 0-2 digit strings. An empty field means
// "not entered"; "0" is a real score. Only results with Changed set are stable
// enough to replicate.
package scoring

import (
	"context"
	"strconv"
	"sync"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/internal/domain/types"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

// Default winning score.
const DefaultWinningScore = 11

// Keystroke outcomes, also used as metric labels.
const (
	OutcomeVerbatim = "verbatim"
	OutcomeHold     = "hold"
	OutcomeTruncate = "truncate"
	OutcomeAdvance  = "advance"
	OutcomeAutoFill = "autofill"
)

// Result is the settled state of a game after a keystroke.
type Result struct {
	Round   int
	Game    int
	S1      string
	S2      string
	Changed bool
	Outcome string

	// Next is the new focus when focus moved, nil otherwise.
	Next *model.ScoreKey
	// CrossedRound is set when Next lies in another round.
	CrossedRound bool
	// Completed is set when no empty field remains.
	Completed bool
}

// Board holds the score map for one schedule shape.
type Board struct {
	mu         sync.Mutex
	shape      []int
	scores     map[model.ScoreKey]string
	winning    int
	maxScore   int
	fixedMax   bool
	focus      *model.ScoreKey
	completed  bool
	frozen     bool
	onComplete func()
	log        logger.Logger
}

// NewBoard creates a board for a schedule with shape[i] games in round i.
func NewBoard(shape []int, opts ...Option) *Board {
	b := &Board{
		shape:   append([]int(nil), shape...),
		scores:  make(map[model.ScoreKey]string),
		winning: DefaultWinningScore,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if !b.fixedMax || b.maxScore < b.winning {
		b.maxScore = defaultMax(b.winning)
	}
	if keys := b.keys(); len(keys) > 0 {
		k := keys[0]
		b.focus = &k
	}
	return b
}

// defaultMax leaves room for extended games past W.
func defaultMax(w int) int {
	return min(max(2*w-2, w+2), 99)
}

// WinningScore returns W.
func (b *Board) WinningScore() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.winning
}

// MaxScore returns the largest two-digit entry accepted without truncation.
func (b *Board) MaxScore() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxScore
}

// SetWinningScore changes W for subsequent keystrokes.
func (b *Board) SetWinningScore(w int) error {
	if w < 1 || w > 99 {
		return ErrInvalidWinningScore
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.winning = w
	if !b.fixedMax || b.maxScore < w {
		b.maxScore = defaultMax(w)
	}
	return nil
}

// Enter applies a keystroke's resulting value to key.
func (b *Board) Enter(key model.ScoreKey, value string) (Result, error) {
	b.mu.Lock()

	if !b.valid(key) {
		b.mu.Unlock()
		return Result{}, ErrUnknownKey
	}
	if b.frozen {
		res := b.result(key)
		b.mu.Unlock()
		return res, ErrFrozen
	}

	if len(value) > 2 {
		value = value[:2]
	}
	b.scores[key] = value
	b.focus = &key

	advance, autofill := false, false
	outcome := OutcomeHold
	w := b.winning

	switch {
	case value == "" || !numeric(value):
		outcome = OutcomeVerbatim
	case len(value) == 1:
		d := int(value[0] - '0')
		switch {
		case value[0] == strconv.Itoa(w)[0]:
			// ambiguous prefix of W
		case d <= w-2:
			autofill, advance = true, true
		case d == w-1:
		case d > w:
			advance = true
		default:
			advance = b.filled(key.Sibling())
		}
	default:
		n, _ := strconv.Atoi(value)
		switch {
		case n > b.maxScore:
			b.scores[key] = value[:1]
			outcome = OutcomeTruncate
		case n >= w:
			advance = true
		case n <= w-2:
			autofill, advance = true, true
		default:
			advance = b.filled(key.Sibling())
		}
	}

	if autofill {
		if sib := key.Sibling(); !b.filled(sib) {
			b.scores[sib] = strconv.Itoa(w)
			outcome = OutcomeAutoFill
			metrics.RecordAutoFill()
		}
	}

	res := b.result(key)
	var fire func()
	if advance {
		if outcome == OutcomeHold {
			outcome = OutcomeAdvance
		}
		res.Changed = true
		fire = b.advance(key, &res)
	}
	res.Outcome = outcome
	b.mu.Unlock()

	metrics.RecordKeystroke(outcome)
	if fire != nil {
		b.log.Info(context.Background(), "all scores entered", logger.Int("rounds", len(b.shape)))
		metrics.RecordMatchComplete()
		fire()
	}
	return res, nil
}

// advance moves focus to the next empty field after key, wrapping around.
// It returns the completion callback when this call completed the board.
func (b *Board) advance(key model.ScoreKey, res *Result) func() {
	keys := b.keys()
	at := 0
	for i, k := range keys {
		if k == key {
			at = i
			break
		}
	}
	for i := 1; i < len(keys); i++ {
		k := keys[(at+i)%len(keys)]
		if !b.filled(k) {
			b.focus = &k
			res.Next = &k
			res.CrossedRound = k.Round != key.Round
			return nil
		}
	}

	b.focus = nil
	res.Completed = true
	if b.completed {
		return nil
	}
	b.completed = true
	if b.onComplete == nil {
		return func() {}
	}
	return b.onComplete
}

// Apply writes a value from a collaborator. It has no focus side effects and
// reports whether the stored value changed. A frozen board ignores it.
func (b *Board) Apply(key model.ScoreKey, value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen || !b.valid(key) || b.scores[key] == value {
		return false
	}
	if value == "" {
		delete(b.scores, key)
	} else {
		b.scores[key] = value
	}
	return true
}

// Replace discards every local score and loads scores. Entries outside the
// board's shape are skipped and counted in the returned value. A frozen board
// keeps its scores and skips every entry.
func (b *Board) Replace(scores []types.GameScore) (skipped int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return len(scores)
	}

	b.scores = make(map[model.ScoreKey]string, len(scores)*2)
	for _, s := range scores {
		k1, k2 := model.Key(s.Round, s.Game, 1), model.Key(s.Round, s.Game, 2)
		if !b.valid(k1) {
			skipped++
			continue
		}
		if s.S1 != "" {
			b.scores[k1] = s.S1
		}
		if s.S2 != "" {
			b.scores[k2] = s.S2
		}
	}
	return skipped
}

// Get returns one field.
func (b *Board) Get(key model.ScoreKey) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scores[key]
}

// Pair returns both fields of a game.
func (b *Board) Pair(round, game int) (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scores[model.Key(round, game, 1)], b.scores[model.Key(round, game, 2)]
}

// Entered lists every game with at least one field set, in schedule order.
func (b *Board) Entered() []types.GameScore {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.GameScore
	for r, n := range b.shape {
		for g := 0; g < n; g++ {
			s1, s2 := b.scores[model.Key(r, g, 1)], b.scores[model.Key(r, g, 2)]
			if s1 != "" || s2 != "" {
				out = append(out, types.GameScore{Round: r, Game: g, S1: s1, S2: s2})
			}
		}
	}
	return out
}

// Snapshot copies the non-empty fields keyed by their string form.
func (b *Board) Snapshot() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.scores))
	for k, v := range b.scores {
		if v != "" {
			out[k.String()] = v
		}
	}
	return out
}

// Focus returns the field awaiting input.
func (b *Board) Focus() (model.ScoreKey, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.focus == nil {
		return model.ScoreKey{}, false
	}
	return *b.focus, true
}

// SetFocus moves input to key.
func (b *Board) SetFocus(key model.ScoreKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.valid(key) {
		return ErrUnknownKey
	}
	b.focus = &key
	return nil
}

// Extend appends a round with games games to the shape.
func (b *Board) Extend(games int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shape = append(b.shape, games)
}

// Shape returns games per round.
func (b *Board) Shape() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.shape...)
}

// Freeze rejects further keystrokes. Used once the match is finished remotely.
func (b *Board) Freeze() {
	b.mu.Lock()
	b.frozen = true
	b.focus = nil
	b.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (b *Board) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}

// Completed reports whether the completion callback has fired.
func (b *Board) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Keys lists every field in (round, game, team) order.
func (b *Board) Keys() []model.ScoreKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keys()
}

func (b *Board) keys() []model.ScoreKey {
	var keys []model.ScoreKey
	for r, n := range b.shape {
		for g := 0; g < n; g++ {
			keys = append(keys, model.Key(r, g, 1), model.Key(r, g, 2))
		}
	}
	return keys
}

func (b *Board) valid(k model.ScoreKey) bool {
	return k.Round >= 0 && k.Round < len(b.shape) &&
		k.Game >= 0 && k.Game < b.shape[k.Round] &&
		(k.Team == 1 || k.Team == 2)
}

func (b *Board) filled(k model.ScoreKey) bool { return b.scores[k] != "" }

func (b *Board) result(k model.ScoreKey) Result {
	return Result{
		Round: k.Round,
		Game:  k.Game,
		S1:    b.scores[model.Key(k.Round, k.Game, 1)],
		S2:    b.scores[model.Key(k.Round, k.Game, 2)],
	}
}

func numeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
