package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for call-limit tracking.
var (
	callLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopify_call_limit_remaining",
		Help: "Calls remaining in the Shopify call-limit bucket",
	})

	callLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopify_call_limit_throttles_total",
		Help: "Total number of requests delayed to let the call-limit bucket drain",
	})
)

// Tracker observes the Shopify call-limit header and paces requests.
type Tracker struct {
	store  Store
	logger zerolog.Logger
}

// NewTracker creates a call-limit tracker backed by the given store.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
	}
}

// Wait pauses before the next request when the last observed bucket is
// nearly full. Stale or absent state means the bucket has drained; no pause.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.store.Get(ctx)
	if err != nil {
		// A broken state store must not take the run down.
		t.logger.Warn().Err(err).Msg("Call limit state unavailable, proceeding")
		return nil
	}
	if state == nil || state.IsStale(now()) {
		return nil
	}

	delay := state.ThrottleDelay()
	if delay == 0 {
		return nil
	}

	callLimitThrottlesTotal.Inc()
	t.logger.Warn().
		Int("used", state.Used).
		Int("bucket", state.Bucket).
		Dur("delay", delay).
		Msg("Call limit bucket nearly full, pausing")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UpdateFromHeaders parses the call-limit header and stores the new state.
// Responses without the header leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	raw := headers.Get(HeaderCallLimit)
	if raw == "" {
		return nil
	}

	used, bucket, err := ParseCallLimit(raw)
	if err != nil {
		return err
	}

	state := &State{
		Used:       used,
		Bucket:     bucket,
		LastUpdate: now(),
	}
	callLimitRemaining.Set(float64(state.Remaining()))

	t.logger.Debug().
		Int("used", used).
		Int("bucket", bucket).
		Msg("Call limit state updated")

	return t.store.Set(ctx, state)
}
