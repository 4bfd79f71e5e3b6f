package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/marts-engine/pkg/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeWatermark(t *testing.T) {
	lookback := 3 * 24 * time.Hour

	t.Run("subtracts lookback from max date", func(t *testing.T) {
		start, ok := ComputeWatermark(day(2024, 3, 10), true, lookback)
		require.True(t, ok)
		assert.Equal(t, day(2024, 3, 7), start)
	})

	t.Run("absent watermark forces full load", func(t *testing.T) {
		_, ok := ComputeWatermark(time.Time{}, false, lookback)
		assert.False(t, ok)
	})

	t.Run("absent watermark ignores any max date value", func(t *testing.T) {
		_, ok := ComputeWatermark(day(2024, 3, 10), false, lookback)
		assert.False(t, ok)
	})
}

type builderFixture struct {
	orders    *mockOrderRepo
	lines     *mockLineItemRepo
	orderFact *mockOrderFactRepo
	lineFact  *mockLineItemFactRepo
	builder   *incrementalBuilder
}

func newBuilderFixture(t *testing.T) *builderFixture {
	t.Helper()
	f := &builderFixture{
		orders:    &mockOrderRepo{},
		lines:     &mockLineItemRepo{},
		orderFact: newMockOrderFactRepo(),
		lineFact:  newMockLineItemFactRepo(),
	}
	b := NewIncrementalBuilder(f.orders, f.lines, f.orderFact, f.lineFact, DefaultLookback, zap.NewNop())
	f.builder = b.(*incrementalBuilder)
	f.builder.now = func() time.Time { return day(2024, 4, 1) }
	return f
}

func stagedOrder(key int64, status string, orderDate time.Time, totalPrice string) *models.Order {
	price, _ := decimal.NewFromString(totalPrice)
	return &models.Order{
		OrderKey:      key,
		CustomerKey:   key * 10,
		OrderStatus:   status,
		TotalPrice:    price,
		OrderDate:     orderDate,
		OrderPriority: "3-MEDIUM",
	}
}

func TestBuildOrderFacts_FullLoadOnEmptyTarget(t *testing.T) {
	f := newBuilderFixture(t)
	f.orders.orders = []*models.Order{
		stagedOrder(1, "O", day(2024, 1, 1), "500"),
		stagedOrder(2, "F", day(2024, 3, 1), "20000"),
	}
	f.orderFact.watermarkOK = false

	merged, err := f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, merged)

	facts, err := f.orderFact.List(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, models.OrderSizeSmall, facts[0].OrderSize)
	assert.Equal(t, models.OrderSizeMedium, facts[1].OrderSize)
}

func TestBuildOrderFacts_WindowExcludesOldRows(t *testing.T) {
	f := newBuilderFixture(t)
	f.orders.orders = []*models.Order{
		stagedOrder(1, "O", day(2024, 3, 1), "500"),  // before window
		stagedOrder(2, "O", day(2024, 3, 27), "500"), // exactly at window start
		stagedOrder(3, "O", day(2024, 3, 29), "500"), // inside window
	}
	f.orderFact.watermark = day(2024, 3, 30)
	f.orderFact.watermarkOK = true

	merged, err := f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, merged)

	facts, _ := f.orderFact.List(context.Background())
	require.Len(t, facts, 2)
	assert.Equal(t, int64(2), facts[0].OrderKey)
	assert.Equal(t, int64(3), facts[1].OrderKey)
}

func TestBuildOrderFacts_FullRefreshIgnoresWatermark(t *testing.T) {
	f := newBuilderFixture(t)
	f.orders.orders = []*models.Order{
		stagedOrder(1, "O", day(2023, 1, 1), "500"),
		stagedOrder(2, "O", day(2024, 3, 29), "500"),
	}
	f.orderFact.watermark = day(2024, 3, 30)
	f.orderFact.watermarkOK = true

	merged, err := f.builder.BuildOrderFacts(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, merged)
}

func TestBuildOrderFacts_DuplicateKeysLastWriteWins(t *testing.T) {
	f := newBuilderFixture(t)
	stale := stagedOrder(1, "O", day(2024, 3, 29), "500")
	fresh := stagedOrder(1, "F", day(2024, 3, 29), "500")
	f.orders.orders = []*models.Order{stale, fresh}
	f.orderFact.watermarkOK = false

	merged, err := f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	facts, _ := f.orderFact.List(context.Background())
	require.Len(t, facts, 1)
	assert.Equal(t, "F", facts[0].OrderStatus)
}

func TestBuildOrderFacts_MergeOverwritesExistingRows(t *testing.T) {
	f := newBuilderFixture(t)
	f.orders.orders = []*models.Order{stagedOrder(1, "O", day(2024, 3, 29), "500")}
	f.orderFact.watermarkOK = false

	_, err := f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)
	facts, _ := f.orderFact.List(context.Background())
	require.Len(t, facts, 1)
	assert.Equal(t, models.StatusCategoryOpen, facts[0].StatusCategory)

	// Source row changes status; the next run fully overwrites the fact.
	f.orders.orders = []*models.Order{stagedOrder(1, "F", day(2024, 3, 29), "500")}
	f.orderFact.watermark = day(2024, 3, 29)
	f.orderFact.watermarkOK = true

	_, err = f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)
	facts, _ = f.orderFact.List(context.Background())
	require.Len(t, facts, 1)
	assert.Equal(t, models.StatusCategoryFulfilled, facts[0].StatusCategory)
	assert.True(t, facts[0].Completed)
}

func TestBuildOrderFacts_NoDeletes(t *testing.T) {
	f := newBuilderFixture(t)
	f.orders.orders = []*models.Order{
		stagedOrder(1, "O", day(2024, 3, 29), "500"),
		stagedOrder(2, "O", day(2024, 3, 29), "500"),
	}
	f.orderFact.watermarkOK = false

	_, err := f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)

	// Order 1 disappears from the source; the fact row stays.
	f.orders.orders = f.orders.orders[1:]
	f.orderFact.watermark = day(2024, 3, 29)
	f.orderFact.watermarkOK = true

	_, err = f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)

	facts, _ := f.orderFact.List(context.Background())
	assert.Len(t, facts, 2)
}

func TestBuildOrderFacts_Idempotent(t *testing.T) {
	f := newBuilderFixture(t)
	f.orders.orders = []*models.Order{
		stagedOrder(1, "F", day(2024, 3, 28), "500"),
		stagedOrder(2, "O", day(2024, 3, 29), "500"),
	}
	f.orderFact.watermarkOK = false

	_, err := f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)
	first, _ := f.orderFact.List(context.Background())

	f.orderFact.watermark = day(2024, 3, 29)
	f.orderFact.watermarkOK = true
	_, err = f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)
	second, _ := f.orderFact.List(context.Background())

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, *first[i], *second[i])
	}
}

func TestBuildOrderFacts_EmptyWindow(t *testing.T) {
	f := newBuilderFixture(t)
	f.orderFact.watermark = day(2024, 3, 30)
	f.orderFact.watermarkOK = true

	merged, err := f.builder.BuildOrderFacts(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, merged)
}

func TestBuildOrderFacts_WatermarkQueryError(t *testing.T) {
	f := newBuilderFixture(t)
	f.orderFact.maxErr = errors.New("connection refused")

	_, err := f.builder.BuildOrderFacts(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order watermark")
}

func stagedLine(key int64, lineNumber int32, shipDate time.Time, extended string) *models.LineItem {
	ext, _ := decimal.NewFromString(extended)
	return &models.LineItem{
		OrderKey:      key,
		LineNumber:    lineNumber,
		LineStatus:    "F",
		ExtendedPrice: ext,
		ShipDate:      shipDate,
	}
}

func TestBuildLineItemFacts_FullLoadOnEmptyTarget(t *testing.T) {
	f := newBuilderFixture(t)
	f.lines.lines = []*models.LineItem{
		stagedLine(1, 1, day(2024, 1, 5), "100"),
		stagedLine(1, 2, day(2024, 3, 5), "200"),
	}
	f.lineFact.watermarkOK = false

	merged, err := f.builder.BuildLineItemFacts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, merged)
}

func TestBuildLineItemFacts_DuplicateCompositeKeysLastWriteWins(t *testing.T) {
	f := newBuilderFixture(t)
	stale := stagedLine(1, 1, day(2024, 3, 29), "100")
	fresh := stagedLine(1, 1, day(2024, 3, 29), "150")
	other := stagedLine(1, 2, day(2024, 3, 29), "300")
	f.lines.lines = []*models.LineItem{stale, fresh, other}
	f.lineFact.watermarkOK = false

	merged, err := f.builder.BuildLineItemFacts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, merged)

	facts, _ := f.lineFact.List(context.Background())
	require.Len(t, facts, 2)
	assert.True(t, facts[0].ExtendedPrice.Equal(decimal.NewFromInt(150)))
}

func TestBuildLineItemFacts_WindowOnShipDate(t *testing.T) {
	f := newBuilderFixture(t)
	f.lines.lines = []*models.LineItem{
		stagedLine(1, 1, day(2024, 3, 1), "100"),
		stagedLine(2, 1, day(2024, 3, 28), "200"),
	}
	f.lineFact.watermark = day(2024, 3, 30)
	f.lineFact.watermarkOK = true

	merged, err := f.builder.BuildLineItemFacts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	facts, _ := f.lineFact.List(context.Background())
	require.Len(t, facts, 1)
	assert.Equal(t, int64(2), facts[0].OrderKey)
}

func TestDedupeOrders(t *testing.T) {
	t.Run("keeps last row per key preserving first-seen position", func(t *testing.T) {
		orders := []*models.Order{
			stagedOrder(1, "O", day(2024, 3, 1), "100"),
			stagedOrder(2, "O", day(2024, 3, 2), "200"),
			stagedOrder(1, "F", day(2024, 3, 1), "100"),
		}
		result := dedupeOrders(orders)
		require.Len(t, result, 2)
		assert.Equal(t, int64(1), result[0].OrderKey)
		assert.Equal(t, "F", result[0].OrderStatus)
		assert.Equal(t, int64(2), result[1].OrderKey)
	})

	t.Run("no duplicates passes through", func(t *testing.T) {
		orders := []*models.Order{
			stagedOrder(1, "O", day(2024, 3, 1), "100"),
			stagedOrder(2, "O", day(2024, 3, 2), "200"),
		}
		assert.Len(t, dedupeOrders(orders), 2)
	})

	t.Run("empty and single element", func(t *testing.T) {
		assert.Empty(t, dedupeOrders(nil))
		assert.Len(t, dedupeOrders([]*models.Order{stagedOrder(1, "O", day(2024, 3, 1), "100")}), 1)
	})
}

func TestNewIncrementalBuilder_DefaultsLookback(t *testing.T) {
	b := NewIncrementalBuilder(&mockOrderRepo{}, &mockLineItemRepo{},
		newMockOrderFactRepo(), newMockLineItemFactRepo(), 0, zap.NewNop())
	assert.Equal(t, DefaultLookback, b.(*incrementalBuilder).lookback)
}
