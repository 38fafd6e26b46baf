// Package ratelimit tracks the Shopify API call-limit bucket and paces
// requests before the bucket fills. It monitors the
// X-Shopify-Shop-Api-Call-Limit header ("used/bucket") and pauses long enough
// for the leaky bucket to drain headroom. It is not a retry mechanism: a 429
// response remains fatal to the run.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeaderCallLimit is the Shopify call-limit header, e.g. "32/40".
const HeaderCallLimit = "X-Shopify-Shop-Api-Call-Limit"

const (
	// ThrottleHeadroom pauses the next request when fewer than this many
	// calls remain in the bucket.
	ThrottleHeadroom = 4

	// LeakInterval is the time Shopify takes to drain one call from the
	// bucket (standard plan: 2 calls per second).
	LeakInterval = 500 * time.Millisecond

	// StaleAfter is the age beyond which stored state is ignored; the bucket
	// has drained on its own by then.
	StaleAfter = 30 * time.Second
)

// State is the call-limit bucket observed on the most recent response.
// With the Redis store it is shared by concurrent extractions of one shop.
type State struct {
	// Used is the number of calls currently counted against the bucket.
	Used int `json:"used"`

	// Bucket is the bucket capacity.
	Bucket int `json:"bucket"`

	// LastUpdate is when this state was observed.
	LastUpdate time.Time `json:"last_update"`
}

// Remaining returns the calls left before the bucket is full.
func (s *State) Remaining() int {
	remaining := s.Bucket - s.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NeedsThrottle reports whether the next request should be delayed.
func (s *State) NeedsThrottle() bool {
	return s.Bucket > 0 && s.Remaining() < ThrottleHeadroom
}

// IsStale reports whether the state is too old to act on.
func (s *State) IsStale(now time.Time) bool {
	return now.Sub(s.LastUpdate) > StaleAfter
}

// ThrottleDelay returns how long to pause so the bucket drains back to the
// throttle headroom. Zero when no throttling is needed.
func (s *State) ThrottleDelay() time.Duration {
	if !s.NeedsThrottle() {
		return 0
	}
	deficit := ThrottleHeadroom - s.Remaining()
	return time.Duration(deficit) * LeakInterval
}

// ParseCallLimit parses the "used/bucket" header value.
func ParseCallLimit(v string) (used, bucket int, err error) {
	parts := strings.SplitN(strings.TrimSpace(v), "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed call limit %q", v)
	}
	used, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed call limit %q: %w", v, err)
	}
	bucket, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed call limit %q: %w", v, err)
	}
	return used, bucket, nil
}
