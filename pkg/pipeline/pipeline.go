// Package pipeline runs one synchronous extraction: fetch, reconcile, load,
// strictly in sequence with no overlap between network calls. Records within
// a page and pages within a fetch are processed in the order received;
// duplicate detection in the sink depends on stable encounter order.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlovary/shopify-etl/pkg/logging"
	"github.com/mlovary/shopify-etl/pkg/reconcile"
	"github.com/mlovary/shopify-etl/pkg/shopify"
	"github.com/mlovary/shopify-etl/pkg/store"
)

// PageLimit is the page size requested from every collection endpoint.
const PageLimit = "250"

// Stage names used in error reporting.
const (
	StageOrders    = "orders"
	StageProducts  = "products"
	StageInventory = "inventory"
)

// Fetcher drains a paginated collection endpoint.
type Fetcher interface {
	FetchAll(ctx context.Context, resource shopify.Resource, params url.Values) ([]shopify.Page, error)
}

// Sink persists normalized records.
type Sink interface {
	LoadOrderRecords(ctx context.Context, records []reconcile.Record) (int, error)
	LoadInventoryLevels(ctx context.Context, rows []store.InventoryRow) (int, error)
	LoadProductInfos(ctx context.Context, rows []store.ProductInfo) (int, error)
}

// StageError tags a failure with the pipeline stage it occurred in and, when
// available, the offending entity id.
type StageError struct {
	Stage    string
	EntityID string
	Err      error
}

func (e *StageError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("stage %s (entity %s): %v", e.Stage, e.EntityID, e.Err)
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline is one extraction run over a fetcher and a sink.
type Pipeline struct {
	fetcher  Fetcher
	sink     Sink
	channels reconcile.ChannelMap
	logger   zerolog.Logger

	// now is the run clock; injectable for tests.
	now func() time.Time
}

// New creates a pipeline.
func New(fetcher Fetcher, sink Sink, channels reconcile.ChannelMap) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		sink:     sink,
		channels: channels,
		logger:   logging.NewLogger("pipeline"),
		now:      time.Now,
	}
}

// SetClock overrides the run clock (for testing).
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Run executes the orders, products, and inventory stages in sequence. The
// first failing stage aborts the run; batches committed by earlier stages
// stand, which the idempotent loader makes safe to re-run.
func (p *Pipeline) Run(ctx context.Context, mode reconcile.Mode) error {
	start := p.now()
	p.logger.Info().Str("mode", string(mode)).Msg("Extraction run starting")

	if err := p.runOrders(ctx, mode); err != nil {
		return err
	}

	inventoryItemIDs, err := p.runProducts(ctx)
	if err != nil {
		return err
	}

	if err := p.runInventory(ctx, inventoryItemIDs); err != nil {
		return err
	}

	p.logger.Info().
		Str("mode", string(mode)).
		Dur("duration", p.now().Sub(start)).
		Msg("Extraction run complete")
	return nil
}

// runOrders fetches all orders, reconciles those inside the extraction
// window, and loads the records into daily_orders.
func (p *Pipeline) runOrders(ctx context.Context, mode reconcile.Mode) error {
	params := url.Values{}
	params.Set("limit", PageLimit)
	params.Set("status", "any")

	pages, err := p.fetcher.FetchAll(ctx, shopify.ResourceOrders, params)
	if err != nil {
		return &StageError{Stage: StageOrders, Err: err}
	}

	orders, err := shopify.DecodeOrders(pages)
	if err != nil {
		return &StageError{Stage: StageOrders, Err: err}
	}

	window := reconcile.NewWindow(mode, p.now())
	reconciler := reconcile.New(window, p.channels)

	var records []reconcile.Record
	for _, order := range orders {
		recs, err := reconciler.Reconcile(order)
		if err != nil {
			return &StageError{
				Stage:    StageOrders,
				EntityID: fmt.Sprintf("%d", order.ID),
				Err:      err,
			}
		}
		records = append(records, recs...)
	}

	count, err := p.sink.LoadOrderRecords(ctx, records)
	if err != nil {
		return &StageError{Stage: StageOrders, Err: err}
	}

	p.logger.Info().
		Int("orders", len(orders)).
		Int("records", count).
		Msg("Orders stage complete")
	return nil
}

// runProducts fetches all products, loads their title rows, and returns the
// distinct inventory item ids in encounter order for the inventory stage.
func (p *Pipeline) runProducts(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("limit", PageLimit)

	pages, err := p.fetcher.FetchAll(ctx, shopify.ResourceProducts, params)
	if err != nil {
		return nil, &StageError{Stage: StageProducts, Err: err}
	}

	products, err := shopify.DecodeProducts(pages)
	if err != nil {
		return nil, &StageError{Stage: StageProducts, Err: err}
	}

	var infos []store.ProductInfo
	var ids []string
	seen := make(map[int64]bool)
	for _, product := range products {
		for _, variant := range product.Variants {
			if seen[variant.InventoryItemID] {
				continue
			}
			seen[variant.InventoryItemID] = true
			ids = append(ids, fmt.Sprintf("%d", variant.InventoryItemID))
			infos = append(infos, store.ProductInfo{
				InventoryItemID: variant.InventoryItemID,
				ProductTitle:    product.Title,
				VariantTitle:    variant.Title,
			})
		}
	}

	count, err := p.sink.LoadProductInfos(ctx, infos)
	if err != nil {
		return nil, &StageError{Stage: StageProducts, Err: err}
	}

	p.logger.Info().
		Int("products", len(products)).
		Int("rows", count).
		Msg("Products stage complete")
	return ids, nil
}

// runInventory fetches store locations, then drains the inventory levels
// endpoint in id batches of at most 50, and loads one snapshot row per
// inventory item with the run date.
func (p *Pipeline) runInventory(ctx context.Context, inventoryItemIDs []string) error {
	if len(inventoryItemIDs) == 0 {
		p.logger.Info().Msg("Inventory stage skipped, no inventory items")
		return nil
	}

	locationPages, err := p.fetcher.FetchAll(ctx, shopify.ResourceLocations, nil)
	if err != nil {
		return &StageError{Stage: StageInventory, Err: err}
	}
	locations, err := shopify.DecodeLocations(locationPages)
	if err != nil {
		return &StageError{Stage: StageInventory, Err: err}
	}

	var locationIDs []string
	for _, location := range locations {
		locationIDs = append(locationIDs, fmt.Sprintf("%d", location.ID))
	}

	runDate := p.now().Format("2006-01-02")

	var rows []store.InventoryRow
	for _, batch := range shopify.SplitIDs(inventoryItemIDs, shopify.IDBatchSize) {
		params := url.Values{}
		params.Set("inventory_item_ids", strings.Join(batch, ","))
		params.Set("location_ids", strings.Join(locationIDs, ","))
		params.Set("limit", PageLimit)

		pages, err := p.fetcher.FetchAll(ctx, shopify.ResourceInventoryLevels, params)
		if err != nil {
			return &StageError{Stage: StageInventory, Err: err}
		}

		levels, err := shopify.DecodeInventoryLevels(pages)
		if err != nil {
			return &StageError{Stage: StageInventory, Err: err}
		}

		for _, level := range levels {
			rows = append(rows, store.InventoryRow{
				InventoryItemID: level.InventoryItemID,
				Available:       level.Available,
				UpdatedAt:       level.UpdatedAt,
				RunDate:         runDate,
			})
		}
	}

	count, err := p.sink.LoadInventoryLevels(ctx, rows)
	if err != nil {
		return &StageError{Stage: StageInventory, Err: err}
	}

	p.logger.Info().
		Int("locations", len(locations)).
		Int("rows", count).
		Msg("Inventory stage complete")
	return nil
}
