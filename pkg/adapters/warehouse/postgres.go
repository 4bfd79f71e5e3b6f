package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	enginesql "github.com/ekaya-inc/marts-engine/pkg/sql"
)

// postgresAdapter reads source metadata over a pgx pool.
type postgresAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresAdapter opens a Postgres source adapter.
func NewPostgresAdapter(ctx context.Context, dsn string) (SourceAdapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping source: %w", err)
	}
	return &postgresAdapter{pool: pool}, nil
}

// NewPostgresPoolAdapter wraps an existing pool. Used when the source lives
// in the engine's own warehouse.
func NewPostgresPoolAdapter(pool *pgxpool.Pool) SourceAdapter {
	return &postgresAdapter{pool: pool}
}

func (a *postgresAdapter) MaxLoadedAt(ctx context.Context, relation, column string) (time.Time, bool, error) {
	if !enginesql.ValidIdentifier(relation) || !enginesql.ValidIdentifier(column) {
		return time.Time{}, false, fmt.Errorf("invalid relation or column identifier: %s.%s", relation, column)
	}

	query := fmt.Sprintf(`SELECT max(%s) FROM %s`, column, relation)

	var maxLoaded *time.Time
	if err := a.pool.QueryRow(ctx, query).Scan(&maxLoaded); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query max loaded-at: %w", err)
	}
	if maxLoaded == nil {
		return time.Time{}, false, nil
	}
	return *maxLoaded, true, nil
}

func (a *postgresAdapter) Close() error {
	a.pool.Close()
	return nil
}

var _ SourceAdapter = (*postgresAdapter)(nil)
