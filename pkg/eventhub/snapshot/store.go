// Package snapshot persists extension shared state between hub runs.
package snapshot

import (
	"context"
	"errors"
	"time"
)

// Store persists shared-state snapshots keyed by hub and extension.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a snapshot, replacing any earlier one for the same
	// (hubID, extension).
	Save(ctx context.Context, hubID, extension string, data []byte) error

	// Load retrieves a snapshot.
	// Returns ErrNotFound if none exists.
	Load(ctx context.Context, hubID, extension string) ([]byte, error)

	// List returns metadata for every snapshot of a hub, ordered by extension.
	// Returns an empty slice (not error) if the hub has none.
	List(ctx context.Context, hubID string) ([]Info, error)

	// Delete removes one snapshot. Missing snapshots are not an error.
	Delete(ctx context.Context, hubID, extension string) error

	// DeleteHub removes every snapshot of a hub.
	DeleteHub(ctx context.Context, hubID string) error

	// Close releases connections and files.
	Close() error
}

// Info describes a stored snapshot without its payload.
type Info struct {
	HubID     string
	Extension string
	SavedAt   time.Time
	Size      int64
}

var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)
