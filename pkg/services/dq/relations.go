package dq

import (
	"context"

	"github.com/ekaya-inc/marts-engine/pkg/models"
	"github.com/ekaya-inc/marts-engine/pkg/repositories"
)

// Relation names as rules refer to them in the project file.
const (
	RelationOrderFacts    = "fct_orders"
	RelationLineItemFacts = "fct_line_items"
	RelationCustomers     = "stg_customers"
)

// DefaultFetchers wires the built relations the standard rule suite reads.
func DefaultFetchers(
	orderFacts repositories.OrderFactRepository,
	lineItemFacts repositories.LineItemFactRepository,
	customers repositories.CustomerRepository,
) map[string]RelationFetcher {
	return map[string]RelationFetcher{
		RelationOrderFacts:    OrderFactFetcher(orderFacts),
		RelationLineItemFacts: LineItemFactFetcher(lineItemFacts),
		RelationCustomers:     CustomerFetcher(customers),
	}
}

// OrderFactFetcher materializes fct_orders as a generic relation.
func OrderFactFetcher(repo repositories.OrderFactRepository) RelationFetcher {
	return func(ctx context.Context) (*Relation, error) {
		facts, err := repo.List(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, len(facts))
		for i, f := range facts {
			rows[i] = orderFactRow(f)
		}
		return &Relation{Name: RelationOrderFacts, Rows: rows}, nil
	}
}

// LineItemFactFetcher materializes fct_line_items as a generic relation.
func LineItemFactFetcher(repo repositories.LineItemFactRepository) RelationFetcher {
	return func(ctx context.Context) (*Relation, error) {
		facts, err := repo.List(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, len(facts))
		for i, f := range facts {
			rows[i] = lineItemFactRow(f)
		}
		return &Relation{Name: RelationLineItemFacts, Rows: rows}, nil
	}
}

// CustomerFetcher materializes stg_customers as a generic relation.
func CustomerFetcher(repo repositories.CustomerRepository) RelationFetcher {
	return func(ctx context.Context) (*Relation, error) {
		customers, err := repo.ListStaged(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, len(customers))
		for i, c := range customers {
			rows[i] = Row{
				"customer_key":    c.CustomerKey,
				"name":            c.Name,
				"address":         c.Address,
				"nation_key":      c.NationKey,
				"phone":           c.Phone,
				"account_balance": c.AccountBalance,
				"market_segment":  c.MarketSegment,
				"loaded_at":       c.LoadedAt,
			}
		}
		return &Relation{Name: RelationCustomers, Rows: rows}, nil
	}
}

func orderFactRow(f *models.OrderFact) Row {
	return Row{
		"order_key":          f.OrderKey,
		"customer_key":       f.CustomerKey,
		"order_status":       f.OrderStatus,
		"total_price":        f.TotalPrice,
		"order_date":         f.OrderDate,
		"order_priority":     f.OrderPriority,
		"clerk":              f.Clerk,
		"ship_priority":      f.ShipPriority,
		"status_category":    f.StatusCategory,
		"is_completed":       f.Completed,
		"order_size":         f.OrderSize,
		"priority_level":     f.PriorityLevel,
		"fulfillment_status": f.FulfillmentStatus,
		"open_line_count":    f.OpenLineCount,
		"line_item_count":    f.LineItemCount,
		"gross_item_total":   f.GrossItemTotal,
		"net_item_total":     f.NetItemTotal,
		"order_year":         f.OrderYear,
		"order_month":        f.OrderMonth,
		"loaded_at":          f.FactLoadedAt,
	}
}

func lineItemFactRow(f *models.LineItemFact) Row {
	return Row{
		"order_key":        f.OrderKey,
		"line_number":      f.LineNumber,
		"part_key":         f.PartKey,
		"supplier_key":     f.SupplierKey,
		"quantity":         f.Quantity,
		"extended_price":   f.ExtendedPrice,
		"discount":         f.Discount,
		"tax":              f.Tax,
		"return_flag":      f.ReturnFlag,
		"line_status":      f.LineStatus,
		"ship_date":        f.ShipDate,
		"commit_date":      f.CommitDate,
		"receipt_date":     f.ReceiptDate,
		"ship_mode":        f.ShipMode,
		"discounted_price": f.DiscountedAmount,
		"final_price":      f.FinalAmount,
		"ship_year":        f.ShipYear,
		"ship_month":       f.ShipMonth,
		"loaded_at":        f.FactLoadedAt,
	}
}
