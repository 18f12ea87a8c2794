// Package storage persists session snapshots to named save slots.
// Two backends exist: local JSON files and Redis.
package storage

import (
	"context"

	"github.com/storycli/storycli/pkg/session"
)

// SaveStore persists and restores session snapshots by slot name.
// Save and Load are exclusive with turn processing; the engine never
// runs a turn while either is in flight.
type SaveStore interface {
	// Save writes a snapshot to the named slot, replacing any
	// previous contents.
	Save(ctx context.Context, slot string, snap *session.Snapshot) error

	// Load reads and validates the named slot. A malformed blob is
	// reported as session.ErrCorruptSave; a missing slot as a
	// distinct not-found error.
	Load(ctx context.Context, slot string) (*session.Snapshot, error)

	// List names the existing save slots.
	List(ctx context.Context) ([]string, error)

	Close() error
}
