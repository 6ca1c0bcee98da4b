package store

import (
	"context"
	"errors"

	"github.com/kmacleod/hockey-draft-backend/internal/draft"
)

var ErrNotFound = errors.New("draft not found")
var ErrExists = errors.New("draft already exists")

// ErrStaleState is returned by SaveDraft when the caller's version lost a
// race against a concurrent mutation. The losing write is discarded.
var ErrStaleState = errors.New("draft modified concurrently")

// Store holds authoritative draft state keyed by draft id. Writes are
// guarded by an optimistic version check so that concurrent mutations can
// never silently overwrite each other.
type Store interface {
	CreateDraft(ctx context.Context, d draft.State) error
	GetDraft(ctx context.Context, id string) (draft.State, int64, error)
	GetDraftByLeague(ctx context.Context, leagueID string) (draft.State, int64, error)
	// SaveDraft persists d if the stored version still equals version and
	// returns the new version. ErrStaleState otherwise.
	SaveDraft(ctx context.Context, d draft.State, version int64) (int64, error)
	DeleteDraft(ctx context.Context, id string) error
}
