package store

import (
	"context"

	"github.com/hearthside/starboard/internal/types"
)

// Store defines the interface contract for state document persistence.
// There is no partial-update API: callers load the full document, mutate it
// in memory, and save the full document back.
type Store interface {
	// Load returns the current state document, creating a default empty
	// document on first use and migrating legacy shapes transparently.
	Load(ctx context.Context) (*types.StateDocument, error)

	// Save durably overwrites the entire state document.
	Save(ctx context.Context, doc *types.StateDocument) error

	Close() error
}
