package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/ekaya-inc/marts-engine/pkg/database"
	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// LineItemRepository reads canonical line item rows from the staging view.
type LineItemRepository interface {
	// ListStaged returns staged line items. When since is non-nil only rows
	// with ship_date >= since are returned. Rows are ordered by
	// (order_key, line_number) ascending.
	ListStaged(ctx context.Context, since *time.Time) ([]*models.LineItem, error)

	// ListByOrderKeys returns all line items belonging to the given orders.
	ListByOrderKeys(ctx context.Context, orderKeys []int64) ([]*models.LineItem, error)
}

type lineItemRepository struct {
	db *database.DB
}

// NewLineItemRepository creates a new line item repository.
func NewLineItemRepository(db *database.DB) LineItemRepository {
	return &lineItemRepository{db: db}
}

const lineItemColumns = `order_key, line_number, part_key, supplier_key, quantity,
		extended_price, discount, tax, return_flag, line_status,
		ship_date, commit_date, receipt_date, ship_mode, loaded_at`

func (r *lineItemRepository) ListStaged(ctx context.Context, since *time.Time) ([]*models.LineItem, error) {
	query := `SELECT ` + lineItemColumns + ` FROM stg_line_items`
	args := []any{}
	if since != nil {
		query += ` WHERE ship_date >= $1`
		args = append(args, *since)
	}
	query += ` ORDER BY order_key, line_number`

	return r.list(ctx, query, args...)
}

func (r *lineItemRepository) ListByOrderKeys(ctx context.Context, orderKeys []int64) ([]*models.LineItem, error) {
	if len(orderKeys) == 0 {
		return nil, nil
	}

	query := `SELECT ` + lineItemColumns + `
		FROM stg_line_items
		WHERE order_key = ANY($1)
		ORDER BY order_key, line_number`

	return r.list(ctx, query, orderKeys)
}

func (r *lineItemRepository) list(ctx context.Context, query string, args ...any) ([]*models.LineItem, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged line items: %w", err)
	}
	defer rows.Close()

	var items []*models.LineItem
	for rows.Next() {
		var l models.LineItem
		if err := rows.Scan(
			&l.OrderKey,
			&l.LineNumber,
			&l.PartKey,
			&l.SupplierKey,
			&l.Quantity,
			&l.ExtendedPrice,
			&l.Discount,
			&l.Tax,
			&l.ReturnFlag,
			&l.LineStatus,
			&l.ShipDate,
			&l.CommitDate,
			&l.ReceiptDate,
			&l.ShipMode,
			&l.LoadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan staged line item: %w", err)
		}
		items = append(items, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read staged line items: %w", err)
	}

	return items, nil
}

var _ LineItemRepository = (*lineItemRepository)(nil)
