// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Gender drives pairing constraints. The zero value means unknown.
type Gender string

// Known genders.
const (
	GenderUnknown Gender = ""
	Male          Gender = "male"
	Female        Gender = "female"
)

// ParseGender accepts male/female in any case, their one-letter forms, and
// empty for unknown.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return Male, nil
	case "f", "female":
		return Female, nil
	case "", "unknown", "-":
		return GenderUnknown, nil
	}
	return GenderUnknown, fmt.Errorf("%w: %q", ErrUnknownGender, s)
}

// Player is identified by ID; Name is the only mutable field.
type Player struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Gender Gender `json:"gender,omitempty" yaml:"gender,omitempty"`
}

// Team is a doubles pairing.
type Team [2]Player

// AllMale reports whether both partners are male.
func (t Team) AllMale() bool { return t[0].Gender == Male && t[1].Gender == Male }

// AllFemale reports whether both partners are female.
func (t Team) AllFemale() bool { return t[0].Gender == Female && t[1].Gender == Female }

// Game is one 2v2 match within a round.
type Game struct {
	ID    string `json:"id"`
	Team1 Team   `json:"team1"`
	Team2 Team   `json:"team2"`
}

// Team returns a pointer to the team at index 0 or 1.
func (g *Game) Team(idx int) *Team {
	if idx == 0 {
		return &g.Team1
	}
	return &g.Team2
}

// Players lists the four players in slot order.
func (g Game) Players() []Player {
	return []Player{g.Team1[0], g.Team1[1], g.Team2[0], g.Team2[1]}
}

// GenderClash reports whether an all-male team faces an all-female team.
func (g Game) GenderClash() bool {
	return (g.Team1.AllMale() && g.Team2.AllFemale()) || (g.Team1.AllFemale() && g.Team2.AllMale())
}

// RoundType selects how a round's pools are built.
type RoundType string

// Round types.
const (
	Mixed      RoundType = "mixed"
	SameGender RoundType = "same-gender"
	Mixer      RoundType = "mixer"
)

// ParseRoundType validates s as a round type.
func ParseRoundType(s string) (RoundType, error) {
	switch rt := RoundType(strings.ToLower(strings.TrimSpace(s))); rt {
	case Mixed, SameGender, Mixer:
		return rt, nil
	case "same", "samegender", "same_gender":
		return SameGender, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRoundType, s)
}

// Round is one scheduling unit: simultaneous games plus players sitting out.
type Round struct {
	ID    string    `json:"id"`
	Type  RoundType `json:"type"`
	Games []Game    `json:"games"`
	Byes  []Player  `json:"byes"`
}

// PlayerIDs returns every id placed in the round, games first then byes.
func (r Round) PlayerIDs() []string {
	ids := make([]string, 0, len(r.Games)*4+len(r.Byes))
	for _, g := range r.Games {
		for _, p := range g.Players() {
			ids = append(ids, p.ID)
		}
	}
	for _, p := range r.Byes {
		ids = append(ids, p.ID)
	}
	return ids
}

// Schedule is the ordered list of rounds for a session.
type Schedule []Round

// Shape returns the number of games in each round.
func (s Schedule) Shape() []int {
	shape := make([]int, len(s))
	for i, r := range s {
		shape[i] = len(r.Games)
	}
	return shape
}

// Validate checks structural invariants: four distinct players per game, each
// id at most once per round, and no all-male versus all-female game.
func (s Schedule) Validate() error {
	for ri, r := range s {
		seen := make(map[string]struct{}, len(r.Games)*4+len(r.Byes))
		for gi, g := range r.Games {
			if g.GenderClash() {
				return fmt.Errorf("%w: round %d game %d pits all-male against all-female", ErrInvariant, ri, gi)
			}
		}
		for _, id := range r.PlayerIDs() {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: round %d places %q twice", ErrInvariant, ri, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// Clone deep-copies the schedule.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for i, r := range s {
		out[i] = Round{
			ID:    r.ID,
			Type:  r.Type,
			Games: append([]Game(nil), r.Games...),
			Byes:  append([]Player(nil), r.Byes...),
		}
	}
	return out
}
