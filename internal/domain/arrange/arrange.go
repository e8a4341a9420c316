// Package arrange lets an operator swap players within a round and rename them in place.
package arrange

import (
	"context"
	"strings"
	"sync"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

// State of the swap gesture.
type State int

// Swap states.
const (
	Idle State = iota
	Selecting
)

func (s State) String() string {
	if s == Selecting {
		return "selecting"
	}
	return "idle"
}

// Outcome reports what a tap did.
type Outcome struct {
	Action   string     // selected, deselected, swapped, rejected, invalid
	Selected model.Slot // the first slot of a pending or completed swap
	Other    model.Slot // the second slot of a completed or rejected swap
	Err      error      // ErrCrossRound or ErrInvalidSlot, non-fatal
}

// Tap actions.
const (
	ActionSelected   = "selected"
	ActionDeselected = "deselected"
	ActionSwapped    = "swapped"
	ActionRejected   = "rejected"
	ActionInvalid    = "invalid"
)

// Arranger owns mutations of a schedule's team membership and player names.
type Arranger struct {
	mu       sync.Mutex
	schedule *model.Schedule
	state    State
	selected model.Slot
	editing  *model.Slot
	log      logger.Logger
}

// Option configures an Arranger.
type Option func(*Arranger)

// WithLogger sets the arranger logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Arranger) { a.log = logger.OrNop(l) }
}

// New wraps schedule. The arranger mutates it in place.
func New(schedule *model.Schedule, opts ...Option) *Arranger {
	a := &Arranger{schedule: schedule, log: logger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the swap state.
func (a *Arranger) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Selected returns the pending slot when Selecting.
func (a *Arranger) Selected() (model.Slot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected, a.state == Selecting
}

// Tap advances the swap gesture.
func (a *Arranger) Tap(slot model.Slot) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.player(slot) == nil {
		a.state = Idle
		metrics.RecordSwap(ActionInvalid)
		return Outcome{Action: ActionInvalid, Other: slot, Err: ErrInvalidSlot}
	}

	if a.state == Idle {
		a.state, a.selected = Selecting, slot
		return Outcome{Action: ActionSelected, Selected: slot}
	}

	first := a.selected
	a.state = Idle
	switch {
	case first == slot:
		return Outcome{Action: ActionDeselected, Selected: first}
	case first.Round != slot.Round:
		metrics.RecordSwap(ActionRejected)
		return Outcome{Action: ActionRejected, Selected: first, Other: slot, Err: ErrCrossRound}
	}

	x, y := a.player(first), a.player(slot)
	*x, *y = *y, *x
	a.log.Debug(context.Background(), "players swapped",
		logger.String("from", first.String()), logger.String("to", slot.String()),
		logger.String("a", x.ID), logger.String("b", y.ID))
	metrics.RecordSwap(ActionSwapped)
	return Outcome{Action: ActionSwapped, Selected: first, Other: slot}
}

// BeginRename starts an inline edit of the player at slot and returns the current name.
// Swap state is left untouched.
func (a *Arranger) BeginRename(slot model.Slot) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.player(slot)
	if p == nil {
		return "", ErrInvalidSlot
	}
	s := slot
	a.editing = &s
	return p.Name, nil
}

// Editing returns the slot being renamed, if any.
func (a *Arranger) Editing() (model.Slot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.editing == nil {
		return model.Slot{}, false
	}
	return *a.editing, true
}

// CommitRename applies name to the player under edit and ends the edit.
func (a *Arranger) CommitRename(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.editing == nil {
		return ErrNotEditing
	}
	slot := *a.editing
	a.editing = nil
	return a.rename(slot, name)
}

// CancelRename drops the edit without changes.
func (a *Arranger) CancelRename() {
	a.mu.Lock()
	a.editing = nil
	a.mu.Unlock()
}

// Rename is BeginRename followed by CommitRename.
func (a *Arranger) Rename(slot model.Slot, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rename(slot, name)
}

// rename updates every occurrence of the slot's player id, byes included.
func (a *Arranger) rename(slot model.Slot, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	p := a.player(slot)
	if p == nil {
		return ErrInvalidSlot
	}
	id := p.ID

	s := *a.schedule
	for ri := range s {
		for gi := range s[ri].Games {
			g := &s[ri].Games[gi]
			for _, team := range []*model.Team{&g.Team1, &g.Team2} {
				for pi := range team {
					if team[pi].ID == id {
						team[pi].Name = name
					}
				}
			}
		}
		for bi := range s[ri].Byes {
			if s[ri].Byes[bi].ID == id {
				s[ri].Byes[bi].Name = name
			}
		}
	}
	metrics.RecordRename()
	return nil
}

func (a *Arranger) player(slot model.Slot) *model.Player {
	if a.schedule == nil {
		return nil
	}
	s := *a.schedule
	if slot.Round < 0 || slot.Round >= len(s) {
		return nil
	}
	games := s[slot.Round].Games
	if slot.Game < 0 || slot.Game >= len(games) {
		return nil
	}
	if slot.Team < 0 || slot.Team > 1 || slot.Pos < 0 || slot.Pos > 1 {
		return nil
	}
	return &games[slot.Game].Team(slot.Team)[slot.Pos]
}
