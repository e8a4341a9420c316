package schedule

import (
	"strings"

	"github.com/okian/rally/internal/domain/model"
)

// PairKey identifies an unordered pair of players: both ids sorted and joined by "|".
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// History accumulates partner and bye counts over a session.
type History struct {
	partners map[string]int
	byes     map[string]int
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{
		partners: make(map[string]int),
		byes:     make(map[string]int),
	}
}

// Partnered returns how many times a and b have been teammates.
func (h *History) Partnered(a, b string) int { return h.partners[PairKey(a, b)] }

// Byes returns how many rounds id has sat out.
func (h *History) Byes(id string) int { return h.byes[id] }

// Pairs returns a copy of the partner counts keyed by PairKey.
func (h *History) Pairs() map[string]int {
	out := make(map[string]int, len(h.partners))
	for k, v := range h.partners {
		out[k] = v
	}
	return out
}

// Players splits a pair key back into its ids.
func Players(pairKey string) (string, string) {
	a, b, _ := strings.Cut(pairKey, "|")
	return a, b
}

func (h *History) clone() *History {
	out := &History{
		partners: make(map[string]int, len(h.partners)),
		byes:     make(map[string]int, len(h.byes)),
	}
	for k, v := range h.partners {
		out.partners[k] = v
	}
	for k, v := range h.byes {
		out.byes[k] = v
	}
	return out
}

func (h *History) repeats(t model.Team) bool {
	return h.Partnered(t[0].ID, t[1].ID) >= 1
}

func (h *History) record(r model.Round) {
	for _, g := range r.Games {
		h.partners[PairKey(g.Team1[0].ID, g.Team1[1].ID)]++
		h.partners[PairKey(g.Team2[0].ID, g.Team2[1].ID)]++
	}
	for _, p := range r.Byes {
		h.byes[p.ID]++
	}
}
