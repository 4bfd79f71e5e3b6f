package warehouse

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/marts-engine/pkg/apperrors"
)

// AdapterFactory creates a source adapter from a DSN.
type AdapterFactory func(ctx context.Context, dsn string) (SourceAdapter, error)

var factories = map[string]AdapterFactory{
	"postgres":  NewPostgresAdapter,
	"sqlserver": NewSQLServerAdapter,
}

// Open creates a source adapter for the given driver type.
func Open(ctx context.Context, driver, dsn string) (SourceAdapter, error) {
	factory, ok := factories[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownDriver, driver)
	}

	adapter, err := factory(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", driver, err)
	}
	return adapter, nil
}

// SupportedDrivers lists the driver types the registry can open.
func SupportedDrivers() []string {
	return []string{"postgres", "sqlserver"}
}
