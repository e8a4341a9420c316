package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ScoreKey addresses one score field: round and game are zero-based, Team is 1 or 2.
type ScoreKey struct {
	Round int
	Game  int
	Team  int
}

// Key builds a ScoreKey.
func Key(round, game, team int) ScoreKey {
	return ScoreKey{Round: round, Game: game, Team: team}
}

// String renders the key as "<round>_<game>_t<team>", e.g. "0_0_t1".
func (k ScoreKey) String() string {
	return strconv.Itoa(k.Round) + "_" + strconv.Itoa(k.Game) + "_t" + strconv.Itoa(k.Team)
}

// Sibling returns the other team's field of the same game.
func (k ScoreKey) Sibling() ScoreKey {
	k.Team = 3 - k.Team
	return k
}

// Less orders keys by round, game, team.
func (k ScoreKey) Less(o ScoreKey) bool {
	if k.Round != o.Round {
		return k.Round < o.Round
	}
	if k.Game != o.Game {
		return k.Game < o.Game
	}
	return k.Team < o.Team
}

// ParseScoreKey parses the String form.
func ParseScoreKey(s string) (ScoreKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "t") {
		return ScoreKey{}, fmt.Errorf("%w: %q", ErrBadScoreKey, s)
	}
	round, err1 := strconv.Atoi(parts[0])
	game, err2 := strconv.Atoi(parts[1])
	team, err3 := strconv.Atoi(strings.TrimPrefix(parts[2], "t"))
	if err1 != nil || err2 != nil || err3 != nil || round < 0 || game < 0 || (team != 1 && team != 2) {
		return ScoreKey{}, fmt.Errorf("%w: %q", ErrBadScoreKey, s)
	}
	return ScoreKey{Round: round, Game: game, Team: team}, nil
}

// Slot addresses one player position: Team and Pos are zero-based indices.
type Slot struct {
	Round int `json:"round"`
	Game  int `json:"game"`
	Team  int `json:"team"`
	Pos   int `json:"pos"`
}

func (s Slot) String() string {
	return fmt.Sprintf("r%d/g%d/t%d/p%d", s.Round, s.Game, s.Team, s.Pos)
}
