package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/marts-engine/pkg/database"
	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// LineItemFactRepository owns all writes to fct_line_items, which is keyed
// by the composite (order_key, line_number).
type LineItemFactRepository interface {
	// MaxShipDate returns the watermark for incremental runs. ok is false
	// when the table is empty or the max is NULL, which forces a full load.
	MaxShipDate(ctx context.Context) (time.Time, bool, error)

	// UpsertBatch merges fact rows by (order_key, line_number): existing rows
	// are fully overwritten, new keys are inserted.
	UpsertBatch(ctx context.Context, facts []*models.LineItemFact) (int, error)

	// List returns all persisted fact rows ordered by (order_key, line_number).
	List(ctx context.Context) ([]*models.LineItemFact, error)
}

type lineItemFactRepository struct {
	db *database.DB
}

// NewLineItemFactRepository creates a new line item fact repository.
func NewLineItemFactRepository(db *database.DB) LineItemFactRepository {
	return &lineItemFactRepository{db: db}
}

func (r *lineItemFactRepository) MaxShipDate(ctx context.Context) (time.Time, bool, error) {
	var maxDate *time.Time
	err := r.db.QueryRow(ctx, `SELECT max(ship_date) FROM fct_line_items`).Scan(&maxDate)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query line item fact watermark: %w", err)
	}
	if maxDate == nil {
		return time.Time{}, false, nil
	}
	return *maxDate, true, nil
}

const upsertLineItemFactSQL = `
	INSERT INTO fct_line_items (
		order_key, line_number, part_key, supplier_key, quantity,
		extended_price, discount, tax, return_flag, line_status,
		ship_date, commit_date, receipt_date, ship_mode,
		discounted_price, final_price, ship_year, ship_month, loaded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (order_key, line_number) DO UPDATE SET
		part_key = EXCLUDED.part_key,
		supplier_key = EXCLUDED.supplier_key,
		quantity = EXCLUDED.quantity,
		extended_price = EXCLUDED.extended_price,
		discount = EXCLUDED.discount,
		tax = EXCLUDED.tax,
		return_flag = EXCLUDED.return_flag,
		line_status = EXCLUDED.line_status,
		ship_date = EXCLUDED.ship_date,
		commit_date = EXCLUDED.commit_date,
		receipt_date = EXCLUDED.receipt_date,
		ship_mode = EXCLUDED.ship_mode,
		discounted_price = EXCLUDED.discounted_price,
		final_price = EXCLUDED.final_price,
		ship_year = EXCLUDED.ship_year,
		ship_month = EXCLUDED.ship_month,
		loaded_at = EXCLUDED.loaded_at`

func (r *lineItemFactRepository) UpsertBatch(ctx context.Context, facts []*models.LineItemFact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, f := range facts {
		batch.Queue(upsertLineItemFactSQL,
			f.OrderKey, f.LineNumber, f.PartKey, f.SupplierKey, f.Quantity,
			f.ExtendedPrice, f.Discount, f.Tax, f.ReturnFlag, f.LineStatus,
			f.ShipDate, f.CommitDate, f.ReceiptDate, f.ShipMode,
			f.DiscountedAmount, f.FinalAmount, f.ShipYear, f.ShipMonth, f.FactLoadedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range facts {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("failed to merge line item facts: %w", err)
		}
	}

	return len(facts), nil
}

func (r *lineItemFactRepository) List(ctx context.Context) ([]*models.LineItemFact, error) {
	query := `
		SELECT order_key, line_number, part_key, supplier_key, quantity,
		       extended_price, discount, tax, return_flag, line_status,
		       ship_date, commit_date, receipt_date, ship_mode,
		       discounted_price, final_price, ship_year, ship_month, loaded_at
		FROM fct_line_items
		ORDER BY order_key, line_number`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list line item facts: %w", err)
	}
	defer rows.Close()

	var facts []*models.LineItemFact
	for rows.Next() {
		var f models.LineItemFact
		if err := rows.Scan(
			&f.OrderKey, &f.LineNumber, &f.PartKey, &f.SupplierKey, &f.Quantity,
			&f.ExtendedPrice, &f.Discount, &f.Tax, &f.ReturnFlag, &f.LineStatus,
			&f.ShipDate, &f.CommitDate, &f.ReceiptDate, &f.ShipMode,
			&f.DiscountedAmount, &f.FinalAmount, &f.ShipYear, &f.ShipMonth, &f.FactLoadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line item fact: %w", err)
		}
		facts = append(facts, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line item facts: %w", err)
	}

	return facts, nil
}

var _ LineItemFactRepository = (*lineItemFactRepository)(nil)
