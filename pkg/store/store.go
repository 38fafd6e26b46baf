// Package store loads normalized records into the relational sink. Writes
// are row-by-row parameterized upserts; free-text fields are bound as
// parameters, never interpolated into SQL.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/mlovary/shopify-etl/pkg/logging"
	"github.com/mlovary/shopify-etl/pkg/reconcile"
)

// Prometheus metrics for sink operations.
var (
	rowsUpsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_rows_upserted_total",
		Help: "Total rows upserted by table",
	}, []string{"table"})

	persistenceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_persistence_errors_total",
		Help: "Total write failures by table",
	}, []string{"table"})
)

// PersistenceError reports a failed sink write with the offending record's
// key. The loader does not retry and does not roll back rows committed by
// earlier calls.
type PersistenceError struct {
	Table string
	Key   string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s (%s): %v", e.Table, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// InventoryRow is one inventory snapshot row, one per run per inventory item.
type InventoryRow struct {
	InventoryItemID int64
	Available       int
	UpdatedAt       string
	RunDate         string
}

// ProductInfo maps an inventory item to its product and variant titles,
// overwritten each run.
type ProductInfo struct {
	InventoryItemID int64
	ProductTitle    string
	VariantTitle    string
}

// Store is the relational sink backed by a pgx connection pool. Connections
// are acquired per load call and released unconditionally.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to the sink and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sink: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping sink: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logging.NewLogger("store"),
	}, nil
}

// NewWithPool wraps an existing pool (for testing).
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: logging.NewLogger("store"),
	}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const upsertOrderRecordSQL = `
INSERT INTO daily_orders (
    order_id, line_item_id, variant_id, sku, title, variant_title, name,
    quantity, price, shipping_share, discount_share, tax_share,
    financial_status, source_name, province, country, tags,
    occurred_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (order_id, line_item_id) DO UPDATE SET
    variant_id = EXCLUDED.variant_id,
    sku = EXCLUDED.sku,
    title = EXCLUDED.title,
    variant_title = EXCLUDED.variant_title,
    name = EXCLUDED.name,
    quantity = EXCLUDED.quantity,
    price = EXCLUDED.price,
    shipping_share = EXCLUDED.shipping_share,
    discount_share = EXCLUDED.discount_share,
    tax_share = EXCLUDED.tax_share,
    financial_status = EXCLUDED.financial_status,
    source_name = EXCLUDED.source_name,
    province = EXCLUDED.province,
    country = EXCLUDED.country,
    tags = EXCLUDED.tags,
    occurred_at = EXCLUDED.occurred_at,
    updated_at = EXCLUDED.updated_at`

const upsertInventoryLevelSQL = `
INSERT INTO inventory_level (inventory_id, inventory_level, last_modification_time, run_date)
VALUES ($1, $2, $3, $4)
ON CONFLICT (inventory_id, run_date) DO UPDATE SET
    inventory_level = EXCLUDED.inventory_level,
    last_modification_time = EXCLUDED.last_modification_time`

const upsertProductInfoSQL = `
INSERT INTO products_informations (inventory_id, product_name, variants)
VALUES ($1, $2, $3)
ON CONFLICT (inventory_id) DO UPDATE SET
    product_name = EXCLUDED.product_name,
    variants = EXCLUDED.variants`

// LoadOrderRecords upserts reconciled order records into daily_orders,
// keyed by (order_id, line_item_id). Returns the count persisted.
func (s *Store) LoadOrderRecords(ctx context.Context, records []reconcile.Record) (int, error) {
	return s.load(ctx, "daily_orders", len(records), func(i int) (string, []any) {
		r := records[i]
		key := fmt.Sprintf("order_id=%d line_item_id=%d", r.OrderID, r.LineItemID)
		return key, []any{
			r.OrderID, r.LineItemID, r.VariantID, r.SKU, r.Title, r.VariantTitle,
			r.Name, r.Quantity, r.Price, r.ShippingShare, r.DiscountShare,
			r.TaxShare, r.FinancialStatus, r.Channel, r.Province, r.Country,
			r.Tags, r.OccurredAt, r.UpdatedAt,
		}
	}, upsertOrderRecordSQL)
}

// LoadInventoryLevels upserts inventory snapshot rows, keyed by
// (inventory_id, run_date).
func (s *Store) LoadInventoryLevels(ctx context.Context, rows []InventoryRow) (int, error) {
	return s.load(ctx, "inventory_level", len(rows), func(i int) (string, []any) {
		r := rows[i]
		key := fmt.Sprintf("inventory_id=%d run_date=%s", r.InventoryItemID, r.RunDate)
		return key, []any{r.InventoryItemID, r.Available, r.UpdatedAt, r.RunDate}
	}, upsertInventoryLevelSQL)
}

// LoadProductInfos upserts product title rows, keyed by inventory_id.
func (s *Store) LoadProductInfos(ctx context.Context, rows []ProductInfo) (int, error) {
	return s.load(ctx, "products_informations", len(rows), func(i int) (string, []any) {
		r := rows[i]
		key := fmt.Sprintf("inventory_id=%d", r.InventoryItemID)
		return key, []any{r.InventoryItemID, r.ProductTitle, r.VariantTitle}
	}, upsertProductInfoSQL)
}

// load acquires one connection for the batch and writes each row in its own
// transaction: commit on success, rollback on failure, connection released
// unconditionally. A failed row aborts the batch; rows already committed
// stand.
func (s *Store) load(ctx context.Context, table string, count int, row func(int) (string, []any), sql string) (int, error) {
	if count == 0 {
		return 0, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		persistenceErrorsTotal.WithLabelValues(table).Inc()
		return 0, &PersistenceError{Table: table, Key: "", Err: err}
	}
	defer conn.Release()

	persisted := 0
	for i := 0; i < count; i++ {
		key, args := row(i)

		tx, err := conn.Begin(ctx)
		if err != nil {
			persistenceErrorsTotal.WithLabelValues(table).Inc()
			return persisted, &PersistenceError{Table: table, Key: key, Err: err}
		}

		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			tx.Rollback(ctx)
			persistenceErrorsTotal.WithLabelValues(table).Inc()
			s.logger.Error().Err(err).Str("table", table).Str("key", key).Msg("Row upsert failed")
			return persisted, &PersistenceError{Table: table, Key: key, Err: err}
		}

		if err := tx.Commit(ctx); err != nil {
			persistenceErrorsTotal.WithLabelValues(table).Inc()
			return persisted, &PersistenceError{Table: table, Key: key, Err: err}
		}

		persisted++
		rowsUpsertedTotal.WithLabelValues(table).Inc()
	}

	s.logger.Info().Str("table", table).Int("rows", persisted).Msg("Batch persisted")
	return persisted, nil
}

// EnsureSchema creates the sink tables if absent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS daily_orders (
  order_id bigint NOT NULL,
  line_item_id bigint NOT NULL,
  variant_id bigint,
  sku text,
  title text,
  variant_title text,
  name text,
  quantity integer,
  price numeric(12,2),
  shipping_share numeric(12,2),
  discount_share numeric(12,2),
  tax_share numeric(12,2),
  financial_status text,
  source_name text,
  province text,
  country text,
  tags text,
  occurred_at text,
  updated_at text,
  PRIMARY KEY (order_id, line_item_id)
);
CREATE TABLE IF NOT EXISTS inventory_level (
  inventory_id bigint NOT NULL,
  inventory_level integer,
  last_modification_time text,
  run_date date NOT NULL,
  PRIMARY KEY (inventory_id, run_date)
);
CREATE TABLE IF NOT EXISTS products_informations (
  inventory_id bigint PRIMARY KEY,
  product_name text,
  variants text
);`)
	return err
}

// Pool exposes the underlying pool (for EnsureSchema at startup).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
