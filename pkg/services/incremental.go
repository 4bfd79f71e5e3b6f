package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/marts-engine/pkg/models"
	"github.com/ekaya-inc/marts-engine/pkg/repositories"
)

// DefaultLookback is the reprocessing window subtracted from the watermark.
// Rows whose date column did not change but whose other attributes did are
// only picked up if they fall inside this window.
const DefaultLookback = 3 * 24 * time.Hour

// ComputeWatermark turns a target table's max-date query result into the
// start of the reprocessing window. ok is false when the target is empty or
// its max date is NULL (corrupt state) - the caller must fall back to a full
// load rather than fail.
func ComputeWatermark(maxDate time.Time, ok bool, lookback time.Duration) (time.Time, bool) {
	if !ok {
		return time.Time{}, false
	}
	return maxDate.Add(-lookback), true
}

// IncrementalBuilder materializes the incremental fact tables. It is the
// sole writer of fct_orders and fct_line_items. At most one concurrent
// builder per target table is assumed; behavior under concurrent writers to
// the same table is undefined.
type IncrementalBuilder interface {
	// BuildOrderFacts merges the reprocessing window of staged orders into
	// fct_orders. fullRefresh forces a full load regardless of watermark.
	// Returns the number of rows merged.
	BuildOrderFacts(ctx context.Context, fullRefresh bool) (int, error)

	// BuildLineItemFacts merges the reprocessing window of staged line items
	// into fct_line_items.
	BuildLineItemFacts(ctx context.Context, fullRefresh bool) (int, error)
}

type incrementalBuilder struct {
	orderRepo        repositories.OrderRepository
	lineItemRepo     repositories.LineItemRepository
	orderFactRepo    repositories.OrderFactRepository
	lineItemFactRepo repositories.LineItemFactRepository
	lookback         time.Duration
	now              func() time.Time
	logger           *zap.Logger
}

// NewIncrementalBuilder creates a new incremental fact builder.
func NewIncrementalBuilder(
	orderRepo repositories.OrderRepository,
	lineItemRepo repositories.LineItemRepository,
	orderFactRepo repositories.OrderFactRepository,
	lineItemFactRepo repositories.LineItemFactRepository,
	lookback time.Duration,
	logger *zap.Logger,
) IncrementalBuilder {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &incrementalBuilder{
		orderRepo:        orderRepo,
		lineItemRepo:     lineItemRepo,
		orderFactRepo:    orderFactRepo,
		lineItemFactRepo: lineItemFactRepo,
		lookback:         lookback,
		now:              time.Now,
		logger:           logger.Named("incremental"),
	}
}

var _ IncrementalBuilder = (*incrementalBuilder)(nil)

func (b *incrementalBuilder) BuildOrderFacts(ctx context.Context, fullRefresh bool) (int, error) {
	since, err := b.orderWindow(ctx, fullRefresh)
	if err != nil {
		return 0, err
	}

	orders, err := b.orderRepo.ListStaged(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to read order window: %w", err)
	}

	orders = dedupeOrders(orders)
	if len(orders) == 0 {
		b.logger.Info("No orders in reprocessing window")
		return 0, nil
	}

	orderKeys := make([]int64, len(orders))
	for i, o := range orders {
		orderKeys[i] = o.OrderKey
	}

	lines, err := b.lineItemRepo.ListByOrderKeys(ctx, orderKeys)
	if err != nil {
		return 0, fmt.Errorf("failed to read order line items: %w", err)
	}
	linesByOrder := make(map[int64][]*models.LineItem, len(orders))
	for _, l := range lines {
		linesByOrder[l.OrderKey] = append(linesByOrder[l.OrderKey], l)
	}

	// Derived columns are recomputed for every row in the window, including
	// rows that did not actually change.
	loadedAt := b.now().UTC()
	facts := make([]*models.OrderFact, len(orders))
	for i, o := range orders {
		facts[i] = BuildOrderFact(o, linesByOrder[o.OrderKey], loadedAt)
	}

	merged, err := b.orderFactRepo.UpsertBatch(ctx, facts)
	if err != nil {
		return 0, fmt.Errorf("failed to merge order facts: %w", err)
	}

	b.logger.Info("Merged order facts",
		zap.Int("rows", merged),
		zap.Bool("full_load", since == nil))
	return merged, nil
}

func (b *incrementalBuilder) BuildLineItemFacts(ctx context.Context, fullRefresh bool) (int, error) {
	since, err := b.lineItemWindow(ctx, fullRefresh)
	if err != nil {
		return 0, err
	}

	lines, err := b.lineItemRepo.ListStaged(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to read line item window: %w", err)
	}

	lines = dedupeLineItems(lines)
	if len(lines) == 0 {
		b.logger.Info("No line items in reprocessing window")
		return 0, nil
	}

	loadedAt := b.now().UTC()
	facts := make([]*models.LineItemFact, len(lines))
	for i, l := range lines {
		facts[i] = BuildLineItemFact(l, loadedAt)
	}

	merged, err := b.lineItemFactRepo.UpsertBatch(ctx, facts)
	if err != nil {
		return 0, fmt.Errorf("failed to merge line item facts: %w", err)
	}

	b.logger.Info("Merged line item facts",
		zap.Int("rows", merged),
		zap.Bool("full_load", since == nil))
	return merged, nil
}

// orderWindow resolves the reprocessing window for fct_orders. nil means
// full load.
func (b *incrementalBuilder) orderWindow(ctx context.Context, fullRefresh bool) (*time.Time, error) {
	if fullRefresh {
		return nil, nil
	}

	maxDate, ok, err := b.orderFactRepo.MaxOrderDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute order watermark: %w", err)
	}

	windowStart, ok := ComputeWatermark(maxDate, ok, b.lookback)
	if !ok {
		b.logger.Info("Order fact watermark absent, falling back to full load")
		return nil, nil
	}
	return &windowStart, nil
}

// lineItemWindow resolves the reprocessing window for fct_line_items.
func (b *incrementalBuilder) lineItemWindow(ctx context.Context, fullRefresh bool) (*time.Time, error) {
	if fullRefresh {
		return nil, nil
	}

	maxDate, ok, err := b.lineItemFactRepo.MaxShipDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute line item watermark: %w", err)
	}

	windowStart, ok := ComputeWatermark(maxDate, ok, b.lookback)
	if !ok {
		b.logger.Info("Line item fact watermark absent, falling back to full load")
		return nil, nil
	}
	return &windowStart, nil
}

// dedupeOrders keeps the last row per order key. Staged reads are ordered by
// order key, so "last" follows source ordering and the merge is
// deterministic.
func dedupeOrders(orders []*models.Order) []*models.Order {
	if len(orders) < 2 {
		return orders
	}

	latest := make(map[int64]int, len(orders))
	result := orders[:0]
	for _, o := range orders {
		if idx, seen := latest[o.OrderKey]; seen {
			result[idx] = o
			continue
		}
		latest[o.OrderKey] = len(result)
		result = append(result, o)
	}
	return result
}

// dedupeLineItems keeps the last row per (order_key, line_number).
func dedupeLineItems(lines []*models.LineItem) []*models.LineItem {
	if len(lines) < 2 {
		return lines
	}

	type lineKey struct {
		orderKey   int64
		lineNumber int32
	}
	latest := make(map[lineKey]int, len(lines))
	result := lines[:0]
	for _, l := range lines {
		key := lineKey{l.OrderKey, l.LineNumber}
		if idx, seen := latest[key]; seen {
			result[idx] = l
			continue
		}
		latest[key] = len(result)
		result = append(result, l)
	}
	return result
}
