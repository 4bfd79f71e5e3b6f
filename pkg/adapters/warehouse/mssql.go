package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver for database/sql

	enginesql "github.com/ekaya-inc/marts-engine/pkg/sql"
)

// sqlServerAdapter reads source metadata from a SQL Server database.
type sqlServerAdapter struct {
	db *sql.DB
}

// NewSQLServerAdapter opens a SQL Server source adapter.
func NewSQLServerAdapter(ctx context.Context, dsn string) (SourceAdapter, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping source: %w", err)
	}
	return &sqlServerAdapter{db: db}, nil
}

func (a *sqlServerAdapter) MaxLoadedAt(ctx context.Context, relation, column string) (time.Time, bool, error) {
	if !enginesql.ValidIdentifier(relation) || !enginesql.ValidIdentifier(column) {
		return time.Time{}, false, fmt.Errorf("invalid relation or column identifier: %s.%s", relation, column)
	}

	query := fmt.Sprintf(`SELECT max(%s) FROM %s`, column, relation)

	var maxLoaded sql.NullTime
	if err := a.db.QueryRowContext(ctx, query).Scan(&maxLoaded); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query max loaded-at: %w", err)
	}
	if !maxLoaded.Valid {
		return time.Time{}, false, nil
	}
	return maxLoaded.Time, true, nil
}

func (a *sqlServerAdapter) Close() error {
	return a.db.Close()
}

var _ SourceAdapter = (*sqlServerAdapter)(nil)
