package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/marts-engine/pkg/database"
	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// CustomerRepository reads canonical customer rows from the staging view.
type CustomerRepository interface {
	ListStaged(ctx context.Context) ([]*models.Customer, error)
}

type customerRepository struct {
	db *database.DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *database.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) ListStaged(ctx context.Context) ([]*models.Customer, error) {
	query := `
		SELECT customer_key, name, address, nation_key, phone, account_balance,
		       market_segment, loaded_at
		FROM stg_customers
		ORDER BY customer_key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(
			&c.CustomerKey,
			&c.Name,
			&c.Address,
			&c.NationKey,
			&c.Phone,
			&c.AccountBalance,
			&c.MarketSegment,
			&c.LoadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan staged customer: %w", err)
		}
		customers = append(customers, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read staged customers: %w", err)
	}

	return customers, nil
}

var _ CustomerRepository = (*customerRepository)(nil)
