package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line status codes as they appear in the raw source.
const (
	LineStatusOpen      = "O"
	LineStatusFulfilled = "F"
)

// LineItem is a canonical (staged) line item row. Lines are identified by
// (OrderKey, LineNumber).
type LineItem struct {
	OrderKey      int64
	LineNumber    int32
	PartKey       int64
	SupplierKey   int64
	Quantity      decimal.Decimal
	ExtendedPrice decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	ReturnFlag    string
	LineStatus    string
	ShipDate      time.Time
	CommitDate    time.Time
	ReceiptDate   time.Time
	ShipMode      string
	LoadedAt      time.Time
}

// DiscountedPrice is the extended price after the discount is applied.
func (l *LineItem) DiscountedPrice() decimal.Decimal {
	return l.ExtendedPrice.Mul(decimal.NewFromInt(1).Sub(l.Discount))
}

// FinalPrice is the discounted price with tax applied.
func (l *LineItem) FinalPrice() decimal.Decimal {
	return l.DiscountedPrice().Mul(decimal.NewFromInt(1).Add(l.Tax))
}
