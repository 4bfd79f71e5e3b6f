package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/marts-engine/pkg/database"
	enginesql "github.com/ekaya-inc/marts-engine/pkg/sql"
)

// RelationRepository executes relation-level DDL and ad-hoc queries for
// view materializations and custom SQL rules.
type RelationRepository interface {
	// CreateOrReplaceView materializes a view model from its SELECT body.
	CreateOrReplaceView(ctx context.Context, name, body string) error

	// QueryRows runs a validated SELECT with named arguments and returns the
	// result as generic rows keyed by column name.
	QueryRows(ctx context.Context, query string, args map[string]any) ([]map[string]any, error)
}

type relationRepository struct {
	db *database.DB
}

// NewRelationRepository creates a new relation repository.
func NewRelationRepository(db *database.DB) RelationRepository {
	return &relationRepository{db: db}
}

func (r *relationRepository) CreateOrReplaceView(ctx context.Context, name, body string) error {
	if !enginesql.ValidIdentifier(name) {
		return fmt.Errorf("invalid view name %q", name)
	}

	result := enginesql.ValidateSelect(body)
	if result.Error != nil {
		return fmt.Errorf("invalid view body for %q: %w", name, result.Error)
	}

	ddl := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", name, result.NormalizedSQL)
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create view %q: %w", name, err)
	}

	return nil
}

func (r *relationRepository) QueryRows(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	var queryArgs []any
	if len(args) > 0 {
		queryArgs = append(queryArgs, pgx.NamedArgs(args))
	}

	rows, err := r.db.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var result []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query rows: %w", err)
	}

	return result, nil
}

var _ RelationRepository = (*relationRepository)(nil)
