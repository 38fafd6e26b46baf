package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists call-limit state between requests. The in-memory store
// covers a single run; the Redis store shares the bucket across the daily
// orders, inventory, and products extractions when their schedulers overlap
// against one shop.
type Store interface {
	Get(ctx context.Context) (*State, error)
	Set(ctx context.Context, state *State) error
}

// MemoryStore keeps call-limit state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the last stored state, or nil when nothing was observed yet.
func (m *MemoryStore) Get(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	copied := *m.state
	return &copied, nil
}

// Set stores the state.
func (m *MemoryStore) Set(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.state = &copied
	return nil
}

// RedisStore keeps call-limit state in Redis, keyed per shop.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed store for the given shop.
func NewRedisStore(client *redis.Client, shop string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("shopify:%s:call_limit", shop),
	}
}

// Get returns the stored state, or nil when the key is absent or expired.
func (r *RedisStore) Get(ctx context.Context) (*State, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get call limit state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("parse call limit state: %w", err)
	}
	return &state, nil
}

// Set stores the state with a TTL of one staleness window; an expired key is
// equivalent to a drained bucket.
func (r *RedisStore) Set(ctx context.Context, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal call limit state: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, StaleAfter).Err(); err != nil {
		return fmt.Errorf("set call limit state: %w", err)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*RedisStore)(nil)

// now is a test seam.
var now = time.Now
