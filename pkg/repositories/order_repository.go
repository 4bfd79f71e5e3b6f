package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/ekaya-inc/marts-engine/pkg/database"
	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// OrderRepository reads canonical order rows from the staging view.
type OrderRepository interface {
	// ListStaged returns staged orders. When since is non-nil only rows with
	// order_date >= since are returned (the reprocessing window). Rows are
	// ordered by order_key ascending so batch deduplication is deterministic.
	ListStaged(ctx context.Context, since *time.Time) ([]*models.Order, error)
}

type orderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *database.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) ListStaged(ctx context.Context, since *time.Time) ([]*models.Order, error) {
	query := `
		SELECT order_key, customer_key, order_status, total_price, order_date,
		       order_priority, clerk, ship_priority, loaded_at
		FROM stg_orders`
	args := []any{}
	if since != nil {
		query += ` WHERE order_date >= $1`
		args = append(args, *since)
	}
	query += ` ORDER BY order_key`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(
			&o.OrderKey,
			&o.CustomerKey,
			&o.OrderStatus,
			&o.TotalPrice,
			&o.OrderDate,
			&o.OrderPriority,
			&o.Clerk,
			&o.ShipPriority,
			&o.LoadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan staged order: %w", err)
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read staged orders: %w", err)
	}

	return orders, nil
}

var _ OrderRepository = (*orderRepository)(nil)
