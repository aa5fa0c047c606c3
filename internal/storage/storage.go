package storage

import (
	"context"
	"errors"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/state"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// ErrConflict is returned by SaveProgress when the stored record changed
// since it was loaded. Callers retry once; the engine's idempotent reward
// application makes the retry safe.
var ErrConflict = errors.New("progress record modified concurrently")

// Storage is the persistence boundary: per-player progress records behind
// optimistic locking, plus the authored chapter documents.
type Storage interface {
	// Ping tests the storage connection
	Ping(ctx context.Context) error

	// Close closes the storage connection
	Close() error

	// LoadProgress retrieves a player's progress record.
	// Returns nil if the player has no record yet.
	LoadProgress(ctx context.Context, playerID string) (*state.ProgressRecord, error)

	// SaveProgress persists a progress record. Returns ErrConflict when the
	// stored version no longer matches the record's version.
	SaveProgress(ctx context.Context, rec *state.ProgressRecord) error

	// LoadContent reads the full chapter set from the content source and
	// builds an immutable content model.
	LoadContent(ctx context.Context) (*story.ContentModel, error)
}
