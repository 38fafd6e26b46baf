// Package shopify provides the authenticated Shopify Admin API client and the
// cursor-pagination fetch protocol used to drain collection endpoints.
package shopify

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/mlovary/shopify-etl/pkg/config"
	"github.com/mlovary/shopify-etl/pkg/logging"
	"github.com/mlovary/shopify-etl/pkg/ratelimit"
)

// Prometheus metrics for Shopify API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_requests_total",
		Help: "Total Shopify API requests by resource and status",
	}, []string{"resource", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopify_request_duration_seconds",
		Help:    "Shopify API request duration in seconds by resource",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_errors_total",
		Help: "Total Shopify API errors by class",
	}, []string{"class"})

	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_pages_fetched_total",
		Help: "Total pages fetched by resource",
	}, []string{"resource"})
)

// Client is the Shopify Admin API client. It is safe for sequential use only,
// matching the pipeline's single-threaded execution model.
type Client struct {
	httpClient *http.Client
	cfg        config.Shopify
	limiter    *ratelimit.Tracker
	logger     zerolog.Logger
}

// New creates a Shopify client from a validated configuration.
func New(cfg config.Shopify, limiter *ratelimit.Tracker) (*Client, error) {
	if cfg.Shop == "" {
		return nil, fmt.Errorf("shop is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = config.DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:     cfg,
		limiter: limiter,
		logger:  logging.NewLogger("shopify-client"),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// get performs a single authenticated GET and returns the response on any
// 2xx status. Transport failures and non-success statuses are fatal.
func (c *Client) get(req *http.Request, resource Resource) (*http.Response, error) {
	ctx := req.Context()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Resource: resource, Err: err}
		}
	}

	c.attachAuth(req)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(string(resource)).Observe(time.Since(startTime).Seconds())

	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(string(resource), "network_error").Inc()
		c.logger.Error().Err(err).Str("resource", string(resource)).Msg("HTTP request failed")
		return nil, &TransportError{Resource: resource, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update call limit from headers")
		}
	}

	requestsTotal.WithLabelValues(string(resource), fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
		errorsTotal.WithLabelValues(string(apiErr.Class())).Inc()
		c.logger.Warn().
			Str("resource", string(resource)).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.Class())).
			Msg("Shopify request error")
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, apiErr
	}

	return resp, nil
}

// attachAuth adds credentials per the configured auth mode. Both modes are
// equivalent capability variants of HTTP basic auth.
func (c *Client) attachAuth(req *http.Request) {
	switch c.cfg.AuthMode {
	case config.AuthEmbeddedURL:
		req.URL.User = url.UserPassword(c.cfg.Username, c.cfg.Password)
	default:
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}
