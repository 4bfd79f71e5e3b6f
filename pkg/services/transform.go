// Package services implements the transformation DAG: the ephemeral
// transform chain, the incremental fact builder, the model runner, and the
// source freshness checker.
package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// Order size bucket boundaries on total price.
var (
	orderSizeMediumFrom = decimal.NewFromInt(10_000)
	orderSizeLargeFrom  = decimal.NewFromInt(100_000)
)

// BuildOrderFact runs the full transform chain for one order: status
// enrichment, size and priority classification, then fulfillment
// finalization against the order's line items. The intermediate steps are
// ephemeral - nothing is persisted until the fact row itself.
func BuildOrderFact(order *models.Order, lines []*models.LineItem, loadedAt time.Time) *models.OrderFact {
	fact := &models.OrderFact{
		Order:        *order,
		FactLoadedAt: loadedAt,
	}

	enrichOrderStatus(fact)
	classifyOrder(fact)
	finalizeOrder(fact, lines)

	return fact
}

// enrichOrderStatus derives the status category and completion flag.
func enrichOrderStatus(fact *models.OrderFact) {
	switch fact.OrderStatus {
	case models.OrderStatusOpen:
		fact.StatusCategory = models.StatusCategoryOpen
	case models.OrderStatusFulfilled:
		fact.StatusCategory = models.StatusCategoryFulfilled
	case models.OrderStatusPending:
		fact.StatusCategory = models.StatusCategoryPending
	default:
		fact.StatusCategory = models.StatusCategoryOther
	}
	fact.Completed = fact.OrderStatus == models.OrderStatusFulfilled
}

// classifyOrder derives the size and priority buckets.
func classifyOrder(fact *models.OrderFact) {
	switch {
	case fact.TotalPrice.LessThan(orderSizeMediumFrom):
		fact.OrderSize = models.OrderSizeSmall
	case fact.TotalPrice.LessThan(orderSizeLargeFrom):
		fact.OrderSize = models.OrderSizeMedium
	default:
		fact.OrderSize = models.OrderSizeLarge
	}

	fact.PriorityLevel = priorityLevel(fact.OrderPriority)
	fact.OrderYear = fact.OrderDate.Year()
	fact.OrderMonth = int(fact.OrderDate.Month())
}

// priorityLevel buckets raw priorities like "1-URGENT" into three levels.
func priorityLevel(priority string) string {
	if len(priority) >= 2 && priority[1] == '-' {
		switch priority[0] {
		case '1', '2':
			return models.PriorityHigh
		case '3':
			return models.PriorityMedium
		case '4', '5':
			return models.PriorityLow
		}
	}
	return models.PriorityLow
}

// finalizeOrder derives the fulfillment status and item totals from the
// order's line items.
func finalizeOrder(fact *models.OrderFact, lines []*models.LineItem) {
	gross := decimal.Zero
	net := decimal.Zero
	openCount := 0

	for _, line := range lines {
		gross = gross.Add(line.ExtendedPrice)
		net = net.Add(line.DiscountedPrice())
		if line.LineStatus == models.LineStatusOpen {
			openCount++
		}
	}

	fact.LineItemCount = len(lines)
	fact.OpenLineCount = openCount
	fact.GrossItemTotal = gross
	fact.NetItemTotal = net

	switch fact.StatusCategory {
	case models.StatusCategoryFulfilled:
		if openCount == 0 {
			fact.FulfillmentStatus = models.FulfillmentComplete
		} else {
			fact.FulfillmentStatus = models.FulfillmentIncomplete
		}
	case models.StatusCategoryOpen:
		fact.FulfillmentStatus = models.FulfillmentInProgress
	case models.StatusCategoryPending:
		fact.FulfillmentStatus = models.FulfillmentPending
	default:
		fact.FulfillmentStatus = models.FulfillmentUnknown
	}
}

// BuildLineItemFact derives the monetary amounts and date parts for one
// line item.
func BuildLineItemFact(line *models.LineItem, loadedAt time.Time) *models.LineItemFact {
	return &models.LineItemFact{
		LineItem:         *line,
		DiscountedAmount: line.DiscountedPrice(),
		FinalAmount:      line.FinalPrice(),
		ShipYear:         line.ShipDate.Year(),
		ShipMonth:        int(line.ShipDate.Month()),
		FactLoadedAt:     loadedAt,
	}
}
