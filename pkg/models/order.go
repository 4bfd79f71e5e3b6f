package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status codes as they appear in the raw source.
const (
	OrderStatusOpen      = "O"
	OrderStatusFulfilled = "F"
	OrderStatusPending   = "P"
)

// Order is a canonical (staged) order row.
type Order struct {
	OrderKey      int64
	CustomerKey   int64
	OrderStatus   string
	TotalPrice    decimal.Decimal
	OrderDate     time.Time
	OrderPriority string
	Clerk         string
	ShipPriority  int32
	LoadedAt      time.Time
}

// IsCompleted reports whether the order reached its terminal state.
func (o *Order) IsCompleted() bool {
	return o.OrderStatus == OrderStatusFulfilled
}
