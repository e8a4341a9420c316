// Package roster reads the players and round plan for a session from YAML.
package roster

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/rally/internal/domain/model"
)

const (
	defaultWinningScore = 11
	maxWinningScore     = 99
)

// Roster is a validated session plan.
type Roster struct {
	Name         string
	WinningScore int
	Rounds       []model.RoundType
	Players      []model.Player
}

// file mirrors the YAML document.
type file struct {
	Name         string        `yaml:"name"`
	WinningScore int           `yaml:"winning_score"`
	Rounds       []string      `yaml:"rounds"`
	Players      []playerEntry `yaml:"players"`
}

type playerEntry struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Gender string `yaml:"gender"`
}

// Load reads and validates the roster at path.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadRoster, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes and validates a roster document. Unknown keys are rejected.
func Parse(r io.Reader) (*Roster, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}
	return f.build()
}

func (f file) build() (*Roster, error) {
	ros := &Roster{
		Name:         strings.TrimSpace(f.Name),
		WinningScore: f.WinningScore,
	}
	if ros.WinningScore == 0 {
		ros.WinningScore = defaultWinningScore
	}
	if ros.WinningScore < 1 || ros.WinningScore > maxWinningScore {
		return nil, fmt.Errorf("%w: winning_score %d out of range", ErrInvalidRoster, f.WinningScore)
	}

	if len(f.Rounds) == 0 {
		return nil, fmt.Errorf("%w: no rounds", ErrInvalidRoster)
	}
	for i, raw := range f.Rounds {
		rt, err := model.ParseRoundType(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: round %d: %w", ErrInvalidRoster, i+1, err)
		}
		ros.Rounds = append(ros.Rounds, rt)
	}

	if len(f.Players) == 0 {
		return nil, fmt.Errorf("%w: no players", ErrInvalidRoster)
	}
	seen := make(map[string]bool, len(f.Players))
	for i, p := range f.Players {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: player %d has no name", ErrInvalidRoster, i+1)
		}
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = "p" + strconv.Itoa(i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate player id %q", ErrInvalidRoster, id)
		}
		seen[id] = true

		g, err := model.ParseGender(p.Gender)
		if err != nil {
			return nil, fmt.Errorf("%w: player %q: %w", ErrInvalidRoster, name, err)
		}
		ros.Players = append(ros.Players, model.Player{ID: id, Name: name, Gender: g})
	}
	return ros, nil
}

// Write encodes ros back to YAML.
func Write(w io.Writer, ros *Roster) error {
	f := file{Name: ros.Name, WinningScore: ros.WinningScore}
	for _, rt := range ros.Rounds {
		f.Rounds = append(f.Rounds, string(rt))
	}
	for _, p := range ros.Players {
		f.Players = append(f.Players, playerEntry{ID: p.ID, Name: p.Name, Gender: string(p.Gender)})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	return enc.Close()
}
