// Package repository holds the reference session store devices synchronise through.
package repository

import (
	"context"

	"github.com/okian/rally/internal/domain/types"
)

// Store is the remote session store contract. Timestamps are store-assigned
// unix milliseconds and strictly increase across all writes.
type Store interface {
	// CreateSession allocates a session id and a short share code.
	CreateSession(ctx context.Context, meta types.SessionMeta) (types.Created, error)

	// JoinSession returns the metadata and the full score set for code.
	// Returns ErrNotFound if the code is unknown.
	JoinSession(ctx context.Context, code, clientID string) (types.Joined, error)

	// UpsertScores stores one game's pair. Later arrivals win.
	UpsertScores(ctx context.Context, u types.ScoreUpsert) error

	// PollUpdates returns games written after since.
	PollUpdates(ctx context.Context, code, clientID string, since int64) (types.PollResult, error)

	// FinishSession marks the session finished. Finishing twice is not an error.
	FinishSession(ctx context.Context, code, sessionID string) error

	// Stats summarises store activity.
	Stats(ctx context.Context) types.Stats
}
