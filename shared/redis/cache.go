package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eaglebank/ledger/shared/logger"
	goredis "github.com/redis/go-redis/v9"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Bind it to a specific view type T; each instance holds a Redis client and an
// optional TTL (pass 0 for keys that should not expire).
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewViewCache creates a ViewCache backed by the provided Redis client.
func NewViewCache[T any](client *goredis.Client, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl}
}

// Get retrieves and unmarshals a value from Redis.
// Returns (nil, false) on any miss or deserialisation error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("key", key).Msg("view cache entry is unreadable")
		return nil, false
	}
	return &v, true
}

// Set marshals value and stores it in Redis under key.
// Errors are logged rather than returned; a failed cache write is non-fatal.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	log := logger.FromContext(ctx)
	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("view cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("view cache write failed")
	}
}

// Delete removes a key from Redis.
func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("key", key).Msg("view cache delete failed")
	}
}
