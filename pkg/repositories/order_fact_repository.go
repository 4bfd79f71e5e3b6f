package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/marts-engine/pkg/database"
	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// OrderFactRepository owns all writes to fct_orders. The data quality engine
// only ever reads through List.
type OrderFactRepository interface {
	// MaxOrderDate returns the watermark for incremental runs. ok is false
	// when the table is empty or the max is NULL, which forces a full load.
	MaxOrderDate(ctx context.Context) (time.Time, bool, error)

	// UpsertBatch merges fact rows by order_key: existing rows are fully
	// overwritten, new keys are inserted. Returns the number of rows merged.
	UpsertBatch(ctx context.Context, facts []*models.OrderFact) (int, error)

	// List returns all persisted fact rows ordered by order_key.
	List(ctx context.Context) ([]*models.OrderFact, error)
}

type orderFactRepository struct {
	db *database.DB
}

// NewOrderFactRepository creates a new order fact repository.
func NewOrderFactRepository(db *database.DB) OrderFactRepository {
	return &orderFactRepository{db: db}
}

func (r *orderFactRepository) MaxOrderDate(ctx context.Context) (time.Time, bool, error) {
	var maxDate *time.Time
	err := r.db.QueryRow(ctx, `SELECT max(order_date) FROM fct_orders`).Scan(&maxDate)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query order fact watermark: %w", err)
	}
	if maxDate == nil {
		return time.Time{}, false, nil
	}
	return *maxDate, true, nil
}

const upsertOrderFactSQL = `
	INSERT INTO fct_orders (
		order_key, customer_key, order_status, total_price, order_date,
		order_priority, clerk, ship_priority, status_category, is_completed,
		order_size, priority_level, fulfillment_status, open_line_count,
		line_item_count, gross_item_total, net_item_total, order_year,
		order_month, loaded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	ON CONFLICT (order_key) DO UPDATE SET
		customer_key = EXCLUDED.customer_key,
		order_status = EXCLUDED.order_status,
		total_price = EXCLUDED.total_price,
		order_date = EXCLUDED.order_date,
		order_priority = EXCLUDED.order_priority,
		clerk = EXCLUDED.clerk,
		ship_priority = EXCLUDED.ship_priority,
		status_category = EXCLUDED.status_category,
		is_completed = EXCLUDED.is_completed,
		order_size = EXCLUDED.order_size,
		priority_level = EXCLUDED.priority_level,
		fulfillment_status = EXCLUDED.fulfillment_status,
		open_line_count = EXCLUDED.open_line_count,
		line_item_count = EXCLUDED.line_item_count,
		gross_item_total = EXCLUDED.gross_item_total,
		net_item_total = EXCLUDED.net_item_total,
		order_year = EXCLUDED.order_year,
		order_month = EXCLUDED.order_month,
		loaded_at = EXCLUDED.loaded_at`

func (r *orderFactRepository) UpsertBatch(ctx context.Context, facts []*models.OrderFact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, f := range facts {
		batch.Queue(upsertOrderFactSQL,
			f.OrderKey, f.CustomerKey, f.OrderStatus, f.TotalPrice, f.OrderDate,
			f.OrderPriority, f.Clerk, f.ShipPriority, f.StatusCategory, f.Completed,
			f.OrderSize, f.PriorityLevel, f.FulfillmentStatus, f.OpenLineCount,
			f.LineItemCount, f.GrossItemTotal, f.NetItemTotal, f.OrderYear,
			f.OrderMonth, f.FactLoadedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range facts {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("failed to merge order facts: %w", err)
		}
	}

	return len(facts), nil
}

func (r *orderFactRepository) List(ctx context.Context) ([]*models.OrderFact, error) {
	query := `
		SELECT order_key, customer_key, order_status, total_price, order_date,
		       order_priority, clerk, ship_priority, status_category, is_completed,
		       order_size, priority_level, fulfillment_status, open_line_count,
		       line_item_count, gross_item_total, net_item_total, order_year,
		       order_month, loaded_at
		FROM fct_orders
		ORDER BY order_key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list order facts: %w", err)
	}
	defer rows.Close()

	var facts []*models.OrderFact
	for rows.Next() {
		var f models.OrderFact
		if err := rows.Scan(
			&f.OrderKey, &f.CustomerKey, &f.OrderStatus, &f.TotalPrice, &f.OrderDate,
			&f.OrderPriority, &f.Clerk, &f.ShipPriority, &f.StatusCategory, &f.Completed,
			&f.OrderSize, &f.PriorityLevel, &f.FulfillmentStatus, &f.OpenLineCount,
			&f.LineItemCount, &f.GrossItemTotal, &f.NetItemTotal, &f.OrderYear,
			&f.OrderMonth, &f.FactLoadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order fact: %w", err)
		}
		facts = append(facts, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order facts: %w", err)
	}

	return facts, nil
}

var _ OrderFactRepository = (*orderFactRepository)(nil)
