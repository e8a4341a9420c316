// Package types contains wire types shared by the store, its transports and devices.
package types

// SessionStatus reports whether a remote session still accepts scores.
type SessionStatus string

// Session statuses.
const (
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
)

// SessionMeta describes a session at creation time.
type SessionMeta struct {
	Name         string `json:"name"`
	WinningScore int    `json:"winning_score"`
	Rounds       int    `json:"rounds"`
	Games        []int  `json:"games"` // games per round
}

// Created is returned to the creator of a session.
type Created struct {
	SessionID string `json:"session_id"`
	ShareCode string `json:"share_code"`
}

// Joined is returned to a device attaching by share code.
type Joined struct {
	SessionID       string        `json:"session_id"`
	ShareCode       string        `json:"share_code"`
	Meta            SessionMeta   `json:"meta"`
	Scores          []GameScore   `json:"scores"`
	LatestTimestamp int64         `json:"latest_timestamp"`
	Connected       int           `json:"connected"`
	Status          SessionStatus `json:"status"`
}

// GameScore is the settled pair for one game. UpdatedAt is server time in unix ms.
type GameScore struct {
	Round     int    `json:"round"`
	Game      int    `json:"game"`
	S1        string `json:"s1"`
	S2        string `json:"s2"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// ScoreUpsert writes one game's pair. ClientTS is the device clock in unix ms.
type ScoreUpsert struct {
	ShareCode string `json:"share_code"`
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
	Round     int    `json:"round"`
	Game      int    `json:"game"`
	S1        string `json:"s1"`
	S2        string `json:"s2"`
	ClientTS  int64  `json:"client_ts"`
}

// Score converts the upsert to its stored form.
func (u ScoreUpsert) Score(at int64) GameScore {
	return GameScore{Round: u.Round, Game: u.Game, S1: u.S1, S2: u.S2, UpdatedAt: at}
}

// PollResult carries updates newer than the caller's last seen timestamp.
type PollResult struct {
	Updates         []GameScore   `json:"updates"`
	LatestTimestamp int64         `json:"latest_timestamp"`
	ConnectedCount  int           `json:"connected_count"`
	Status          SessionStatus `json:"status"`
}

// Finished reports whether the session was closed by any participant.
func (p PollResult) Finished() bool { return p.Status == StatusFinished }

// Stats summarises the store for the /stats endpoint.
type Stats struct {
	Sessions       int   `json:"sessions"`
	ActiveSessions int   `json:"active_sessions"`
	Upserts        int64 `json:"upserts"`
	Polls          int64 `json:"polls"`
}
