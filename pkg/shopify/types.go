package shopify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Page is one raw API response body. Pages are created per HTTP call,
// decoded immediately, and discarded; nothing is cached across runs.
type Page []byte

// Order is a Shopify order as returned by the orders endpoint. Monetary
// fields arrive as JSON strings and are parsed on demand via ParseMoney.
type Order struct {
	ID              int64          `json:"id"`
	CreatedAt       string         `json:"created_at"`
	ProcessedAt     string         `json:"processed_at"`
	CancelledAt     string         `json:"cancelled_at"`
	UpdatedAt       string         `json:"updated_at"`
	FinancialStatus string         `json:"financial_status"`
	CancelReason    string         `json:"cancel_reason"`
	Test            bool           `json:"test"`
	Tags            string         `json:"tags"`
	TotalDiscounts  string         `json:"total_discounts"`
	TotalTax        string         `json:"total_tax"`
	SourceName      string         `json:"source_name"`
	ShippingLines   []ShippingLine `json:"shipping_lines"`
	BillingAddress  *Address       `json:"billing_address"`
	Refunds         []Refund       `json:"refunds"`
	LineItems       []LineItem     `json:"line_items"`
}

// LineItem belongs to exactly one order and is immutable once fetched.
type LineItem struct {
	ID           int64  `json:"id"`
	VariantID    int64  `json:"variant_id"`
	SKU          string `json:"sku"`
	Title        string `json:"title"`
	VariantTitle string `json:"variant_title"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
}

// ShippingLine is one shipping charge on an order.
type ShippingLine struct {
	Price string `json:"price"`
}

// Address is the subset of a billing address the pipeline keeps.
type Address struct {
	Province string `json:"province"`
	Country  string `json:"country"`
}

// Refund carries either order-level adjustments or per-line-item refund
// amounts, distinguished downstream by its free-text note.
type Refund struct {
	Note             string            `json:"note"`
	OrderAdjustments []OrderAdjustment `json:"order_adjustments"`
	RefundLineItems  []RefundLineItem  `json:"refund_line_items"`
}

// OrderAdjustment is an order-level refund amount. The API's sign convention
// for tax adjustments is inconsistent; see the reconciler.
type OrderAdjustment struct {
	Amount string `json:"amount"`
}

// RefundLineItem is a per-line-item refund amount. Unlike order money fields,
// the subtotal arrives as a JSON number.
type RefundLineItem struct {
	LineItemID int64   `json:"line_item_id"`
	Subtotal   float64 `json:"subtotal"`
}

// Product is a Shopify product with its variants.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Variant links a product to an inventory item.
type Variant struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	InventoryItemID int64  `json:"inventory_item_id"`
}

// InventoryLevel is the available quantity of one inventory item at one
// location at fetch time.
type InventoryLevel struct {
	InventoryItemID int64  `json:"inventory_item_id"`
	LocationID      int64  `json:"location_id"`
	Available       int    `json:"available"`
	UpdatedAt       string `json:"updated_at"`
}

// Location is a store location.
type Location struct {
	ID int64 `json:"id"`
}

// DecodeOrders decodes the orders array out of raw pages, preserving order.
func DecodeOrders(pages []Page) ([]Order, error) {
	var out []Order
	for _, page := range pages {
		var body struct {
			Orders []Order `json:"orders"`
		}
		if err := json.Unmarshal(page, &body); err != nil {
			return nil, &DataShapeError{Resource: ResourceOrders, Field: "orders", Err: err}
		}
		out = append(out, body.Orders...)
	}
	return out, nil
}

// DecodeProducts decodes the products array out of raw pages.
func DecodeProducts(pages []Page) ([]Product, error) {
	var out []Product
	for _, page := range pages {
		var body struct {
			Products []Product `json:"products"`
		}
		if err := json.Unmarshal(page, &body); err != nil {
			return nil, &DataShapeError{Resource: ResourceProducts, Field: "products", Err: err}
		}
		out = append(out, body.Products...)
	}
	return out, nil
}

// DecodeInventoryLevels decodes the inventory_levels array out of raw pages.
func DecodeInventoryLevels(pages []Page) ([]InventoryLevel, error) {
	var out []InventoryLevel
	for _, page := range pages {
		var body struct {
			InventoryLevels []InventoryLevel `json:"inventory_levels"`
		}
		if err := json.Unmarshal(page, &body); err != nil {
			return nil, &DataShapeError{Resource: ResourceInventoryLevels, Field: "inventory_levels", Err: err}
		}
		out = append(out, body.InventoryLevels...)
	}
	return out, nil
}

// DecodeLocations decodes the locations array out of raw pages.
func DecodeLocations(pages []Page) ([]Location, error) {
	var out []Location
	for _, page := range pages {
		var body struct {
			Locations []Location `json:"locations"`
		}
		if err := json.Unmarshal(page, &body); err != nil {
			return nil, &DataShapeError{Resource: ResourceLocations, Field: "locations", Err: err}
		}
		out = append(out, body.Locations...)
	}
	return out, nil
}

// ParseMoney parses a Shopify money string ("20.00", "-5.00"). The empty
// string parses as zero: monetary fields are always populated downstream.
func ParseMoney(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	return v, nil
}
