package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a canonical (staged) customer row.
type Customer struct {
	CustomerKey    int64
	Name           string
	Address        string
	NationKey      int64
	Phone          string
	AccountBalance decimal.Decimal
	MarketSegment  string
	LoadedAt       time.Time
}
