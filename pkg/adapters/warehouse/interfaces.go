// Package warehouse provides adapters for reading source relation metadata
// from the databases raw data is loaded from. The engine's own warehouse is
// always Postgres; sources may additionally live in external databases.
package warehouse

import (
	"context"
	"time"
)

// SourceAdapter reads freshness metadata from one source database.
type SourceAdapter interface {
	// MaxLoadedAt returns the maximum value of the loaded-at column for the
	// relation. ok is false when the relation is empty.
	MaxLoadedAt(ctx context.Context, relation, column string) (maxLoaded time.Time, ok bool, err error)

	// Close releases the underlying connection.
	Close() error
}
