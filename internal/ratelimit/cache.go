package ratelimit

import (
	"context"
	"time"
)

// RequestCache fronts a CounterStore with a per-request read cache so the
// same bucket is fetched from durable storage at most once per request.
// Mutations write through synchronously and update the cache in place.
// Not goroutine-safe: construct one per request.
type RequestCache struct {
	inner CounterStore
	seen  map[Key]*Counter
}

// NewRequestCache wraps a counter store for the lifetime of one request.
func NewRequestCache(inner CounterStore) *RequestCache {
	return &RequestCache{
		inner: inner,
		seen:  make(map[Key]*Counter),
	}
}

func (c *RequestCache) Get(ctx context.Context, key Key) (*Counter, error) {
	if cached, ok := c.seen[key]; ok {
		if cached != nil && time.Now().After(cached.ExpiresAt) {
			return nil, nil
		}
		return cached, nil
	}
	counter, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.seen[key] = counter
	return counter, nil
}

func (c *RequestCache) Increment(ctx context.Context, key Key, ttl time.Duration) (*Counter, error) {
	counter, err := c.inner.Increment(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	c.seen[key] = counter
	return counter, nil
}

func (c *RequestCache) Reset(ctx context.Context, key Key) error {
	if err := c.inner.Reset(ctx, key); err != nil {
		return err
	}
	c.seen[key] = nil
	return nil
}

func (c *RequestCache) IsOver(ctx context.Context, key Key, limit int) (bool, error) {
	counter, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return counter != nil && counter.Count >= limit, nil
}
