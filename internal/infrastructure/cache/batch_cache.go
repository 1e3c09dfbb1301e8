// Package cache provides a Redis read-through cache for inventory batch snapshots.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/pkg/logger"
)

const keyPrefix = "rx:batch"

// DefaultTTL keeps snapshots short-lived. Availability shown while editing is
// advisory; the stock ledger re-checks it when the document is confirmed.
const DefaultTTL = 30 * time.Second

// originTimeout bounds a shared origin lookup, which no single caller can cancel.
const originTimeout = 5 * time.Second

var _ inventory.Index = (*BatchCache)(nil)

// BatchCache wraps an inventory.Index. Concurrent misses on the same batch are
// collapsed into one origin lookup. Redis failures fall through to the origin.
type BatchCache struct {
	client *redis.Client
	origin inventory.Index
	ttl    time.Duration
	group  singleflight.Group
}

// NewBatchCache creates a cache in front of origin.
func NewBatchCache(client *redis.Client, origin inventory.Index, ttl time.Duration) *BatchCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BatchCache{client: client, origin: origin, ttl: ttl}
}

// Key returns the Redis key of a batch. Parts are query-escaped so a ':' inside an
// id cannot make two batches share a key.
func Key(k inventory.BatchKey) string {
	k = k.Normalize()
	return strings.Join([]string{keyPrefix, url.QueryEscape(k.ItemID), url.QueryEscape(k.BatchNo)}, ":")
}

// Lookup implements inventory.Index. Not-found results are not cached so a batch
// received a moment later becomes visible at once.
func (c *BatchCache) Lookup(ctx context.Context, key inventory.BatchKey) (inventory.Batch, error) {
	cacheKey := Key(key)

	payload, err := c.client.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var b inventory.Batch
		if jsonErr := json.Unmarshal(payload, &b); jsonErr == nil {
			return b, nil
		}
		logger.Warn(ctx, "dropping undecodable batch cache entry", "key", cacheKey)
	case !errors.Is(err, redis.Nil):
		logger.Warn(ctx, "batch cache read failed", "key", cacheKey, "error", err)
	}

	// The flight is shared, so it must outlive the caller that started it.
	ch := c.group.DoChan(cacheKey, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), originTimeout)
		defer cancel()

		b, err := c.origin.Lookup(flightCtx, key)
		if err != nil {
			return nil, err
		}
		c.store(flightCtx, cacheKey, b)
		return b, nil
	})

	select {
	case <-ctx.Done():
		return inventory.Batch{}, apperror.NewLookupFailed("batch", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return inventory.Batch{}, res.Err
		}
		return res.Val.(inventory.Batch), nil
	}
}

func (c *BatchCache) store(ctx context.Context, cacheKey string, b inventory.Batch) {
	raw, err := json.Marshal(b)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey, raw, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "batch cache write failed", "key", cacheKey, "error", err)
	}
}

// Invalidate drops the cached snapshots of keys.
func (c *BatchCache) Invalidate(ctx context.Context, keys ...inventory.BatchKey) error {
	if len(keys) == 0 {
		return nil
	}
	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = Key(k)
	}
	return c.client.Del(ctx, cacheKeys...).Err()
}
