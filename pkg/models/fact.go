package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status categories derived from the raw order status code.
const (
	StatusCategoryOpen      = "open"
	StatusCategoryFulfilled = "fulfilled"
	StatusCategoryPending   = "pending"
	StatusCategoryOther     = "other"
)

// Order size buckets derived from total price.
const (
	OrderSizeSmall  = "small"
	OrderSizeMedium = "medium"
	OrderSizeLarge  = "large"
)

// Priority levels derived from the raw order priority string.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Fulfillment statuses combining the order state with its line items.
const (
	FulfillmentComplete   = "fulfilled"
	FulfillmentIncomplete = "incomplete"
	FulfillmentInProgress = "in_progress"
	FulfillmentPending    = "pending"
	FulfillmentUnknown    = "unknown"
)

// OrderFact is a fully enriched order row as persisted in fct_orders.
// Keyed by OrderKey; derived columns are recomputed for every row in the
// reprocessing window on each incremental run.
type OrderFact struct {
	Order

	StatusCategory    string
	Completed         bool
	OrderSize         string
	PriorityLevel     string
	FulfillmentStatus string
	OpenLineCount     int
	LineItemCount     int
	GrossItemTotal    decimal.Decimal
	NetItemTotal      decimal.Decimal
	OrderYear         int
	OrderMonth        int
	FactLoadedAt      time.Time
}

// LineItemFact is a fully enriched line item row as persisted in
// fct_line_items. Keyed by (OrderKey, LineNumber).
type LineItemFact struct {
	LineItem

	DiscountedAmount decimal.Decimal
	FinalAmount      decimal.Decimal
	ShipYear         int
	ShipMonth        int
	FactLoadedAt     time.Time
}
