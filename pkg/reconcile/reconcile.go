// Package reconcile computes a financially correct per-line-item monetary
// record from an order's current financial status, prorating shared
// order-level amounts across line items.
package reconcile

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlovary/shopify-etl/pkg/logging"
	"github.com/mlovary/shopify-etl/pkg/shopify"
)

// Financial statuses driving the price computation.
const (
	StatusPending           = "pending"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
)

// Sentinels for absent remote fields.
const (
	// UnknownRegion stands in for a missing billing address.
	UnknownRegion = "unknown"

	// None stands in for a missing variant title or tags.
	None = "none"
)

// Record is the reconciled monetary record for one (order, line item) pair.
// Exactly one Record exists per pair per run; monetary fields are always
// populated, defaulting to 0 before adjustment.
type Record struct {
	OrderID    int64
	LineItemID int64
	VariantID  int64

	SKU          string
	Title        string
	VariantTitle string
	Name         string
	Quantity     int

	Price         float64
	ShippingShare float64
	DiscountShare float64
	TaxShare      float64

	FinancialStatus string
	Channel         string
	Province        string
	Country         string
	Tags            string

	// OccurredAt is the timestamp resolved from the financial status.
	OccurredAt string
	UpdatedAt  string
}

// Reconciler turns orders into Records for one extraction window.
type Reconciler struct {
	window   Window
	channels ChannelMap
	logger   zerolog.Logger
}

// New creates a reconciler.
func New(window Window, channels ChannelMap) *Reconciler {
	return &Reconciler{
		window:   window,
		channels: channels,
		logger:   logging.NewLogger("reconciler"),
	}
}

// Reconcile computes one Record per line item, line-item order preserved.
// Excluded orders (test orders, non-customer cancellations, out-of-window
// creations) yield no records and no error.
func (r *Reconciler) Reconcile(order shopify.Order) ([]Record, error) {
	included, err := r.includes(order)
	if err != nil {
		return nil, err
	}
	if !included {
		return nil, nil
	}

	count := len(order.LineItems)
	if count == 0 {
		return nil, nil
	}

	totalDiscounts, err := r.money(order, "total_discounts", order.TotalDiscounts)
	if err != nil {
		return nil, err
	}
	totalTax, err := r.money(order, "total_tax", order.TotalTax)
	if err != nil {
		return nil, err
	}

	// Shared-amount proration: the first shipping line and the order totals
	// split evenly across line items, regardless of status.
	discountShare := totalDiscounts / float64(count)
	taxShare := totalTax / float64(count)
	shippingShare := 0.0
	if len(order.ShippingLines) > 0 {
		shipping, err := r.money(order, "shipping_lines.price", order.ShippingLines[0].Price)
		if err != nil {
			return nil, err
		}
		shippingShare = shipping / float64(count)
	}

	province, country := UnknownRegion, UnknownRegion
	if order.BillingAddress != nil {
		province = order.BillingAddress.Province
		country = order.BillingAddress.Country
	}
	tags := order.Tags
	if tags == "" {
		tags = None
	}

	records := make([]Record, 0, count)
	for _, item := range order.LineItems {
		unit, err := r.money(order, "line_items.price", item.Price)
		if err != nil {
			return nil, err
		}

		price := 0.0
		refundTax := 0.0
		var occurredAt string

		switch order.FinancialStatus {
		case StatusRefunded:
			price = -unit
			occurredAt = order.CancelledAt
			if occurredAt == "" {
				occurredAt = order.ProcessedAt
			}
		case StatusPending:
			price = unit
			occurredAt = order.ProcessedAt
		case StatusPartiallyRefunded:
			price, refundTax, err = r.walkRefunds(order, item, count)
			if err != nil {
				return nil, err
			}
			price += unit
			occurredAt = order.ProcessedAt
		default:
			price = unit
			occurredAt = order.CreatedAt
		}
		if occurredAt == "" {
			occurredAt = order.CreatedAt
		}

		variantTitle := item.VariantTitle
		if variantTitle == "" {
			variantTitle = None
		}

		records = append(records, Record{
			OrderID:         order.ID,
			LineItemID:      item.ID,
			VariantID:       item.VariantID,
			SKU:             item.SKU,
			Title:           item.Title,
			VariantTitle:    variantTitle,
			Name:            item.Name,
			Quantity:        item.Quantity,
			Price:           price,
			ShippingShare:   shippingShare,
			DiscountShare:   discountShare,
			TaxShare:        taxShare + refundTax,
			FinancialStatus: order.FinancialStatus,
			Channel:         r.channels.Label(order.SourceName),
			Province:        province,
			Country:         country,
			Tags:            tags,
			OccurredAt:      occurredAt,
			UpdatedAt:       order.UpdatedAt,
		})
	}

	return records, nil
}

// includes applies the exclusion filter: no test orders, only empty or
// customer-initiated cancellations, creation date inside the window.
func (r *Reconciler) includes(order shopify.Order) (bool, error) {
	if order.Test {
		return false, nil
	}
	if order.CancelReason != "" && order.CancelReason != "customer" {
		return false, nil
	}

	created, err := parseDay(order.CreatedAt)
	if err != nil {
		return false, &shopify.DataShapeError{
			Resource: shopify.ResourceOrders,
			EntityID: order.ID,
			Field:    "created_at",
			Err:      err,
		}
	}
	return r.window.Contains(created), nil
}

// walkRefunds handles a partially refunded order. Refund records are walked
// in order: a refund whose note mentions taxes distributes its order-level
// adjustments evenly across all line items into the tax share, inverting the
// API's sign convention (an amount already carrying a minus is added, an
// unsigned amount is subtracted). Any other refund subtracts the first
// matching per-line-item subtotal from the price; first match wins and later
// refund entries for the same line item are ignored.
func (r *Reconciler) walkRefunds(order shopify.Order, item shopify.LineItem, count int) (price, tax float64, err error) {
	matched := false
	for _, refund := range order.Refunds {
		if isTaxRefund(refund.Note) {
			for _, adjustment := range refund.OrderAdjustments {
				amount, err := r.money(order, "refunds.order_adjustments.amount", adjustment.Amount)
				if err != nil {
					return 0, 0, err
				}
				tax += -amount / float64(count)
			}
			continue
		}

		if matched {
			continue
		}
		for _, entry := range refund.RefundLineItems {
			if entry.LineItemID == item.ID {
				price -= entry.Subtotal
				matched = true
				break
			}
		}
	}
	return price, tax, nil
}

// isTaxRefund matches the free-text note convention used for tax-only
// refunds. Kept as a case-insensitive substring match for compatibility with
// historical refund data.
func isTaxRefund(note string) bool {
	return strings.Contains(strings.ToLower(note), "taxes")
}

// money parses a monetary string field, tagging failures with the order id.
func (r *Reconciler) money(order shopify.Order, field, value string) (float64, error) {
	amount, err := shopify.ParseMoney(value)
	if err != nil {
		return 0, &shopify.DataShapeError{
			Resource: shopify.ResourceOrders,
			EntityID: order.ID,
			Field:    field,
			Err:      err,
		}
	}
	return amount, nil
}

// parseDay extracts the calendar date from a Shopify timestamp.
func parseDay(ts string) (time.Time, error) {
	if len(ts) >= 10 {
		if day, err := time.Parse("2006-01-02", ts[:10]); err == nil {
			return day, nil
		}
	}
	return time.Parse(time.RFC3339, ts)
}
