// Package metrics documents the Prometheus metrics exposed by the extraction
// pipeline. All metrics are defined in their respective packages (shopify,
// ratelimit, store) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/shopify):
//   - shopify_requests_total{resource, status} (Counter): Requests by resource and HTTP status
//   - shopify_request_duration_seconds{resource} (Histogram): Request duration by resource
//   - shopify_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - shopify_pages_fetched_total{resource} (Counter): Pages drained by resource
//
// Call Limit Metrics (pkg/ratelimit):
//   - shopify_call_limit_remaining (Gauge): Calls left in the leaky bucket
//   - shopify_call_limit_throttles_total (Counter): Requests delayed to let the bucket drain
//
// Sink Metrics (pkg/store):
//   - sink_rows_upserted_total{table} (Counter): Rows upserted by table
//   - sink_persistence_errors_total{table} (Counter): Write failures by table
//
// Example Prometheus Queries:
//
//   # Remote error rate
//   rate(shopify_errors_total[5m])
//
//   # Throttling pressure
//   shopify_call_limit_remaining < 4
//
//   # Rows landed per run
//   increase(sink_rows_upserted_total[1h])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(shopify_request_duration_seconds_bucket[5m]))
