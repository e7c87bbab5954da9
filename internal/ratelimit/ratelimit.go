package ratelimit

import (
	"context"
	"time"
)

// Key addresses one counter bucket: an identity string (validated IP or
// IP plus username hash) and the action being throttled.
type Key struct {
	Identity string
	Action   string
}

// String returns the canonical storage key for the bucket.
func (k Key) String() string {
	return "ratelimit:" + k.Action + ":" + k.Identity
}

// Counter is the stored state of one bucket. The window slides: every
// increment pushes ExpiresAt to now+ttl.
type Counter struct {
	Count           int       `json:"count"`
	WindowStartedAt time.Time `json:"window_started_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// TTLStore is the durable expiring key/value storage the counter store
// writes through to. Implemented by the transient repository.
type TTLStore interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CounterStore exposes the counter operations used by the login gate and
// the attempt tracker.
type CounterStore interface {
	Get(ctx context.Context, key Key) (*Counter, error)
	Increment(ctx context.Context, key Key, ttl time.Duration) (*Counter, error)
	Reset(ctx context.Context, key Key) error
	IsOver(ctx context.Context, key Key, limit int) (bool, error)
}

// Store is the durable CounterStore. Increment is read-modify-write:
// the backing store has no cross-process atomic increment, so two
// overlapping requests can undercount by one. The short TTL and low
// thresholds bound the impact to one extra attempt in the worst case.
type Store struct {
	ttl TTLStore
}

// NewStore creates a durable counter store over a TTL key/value store.
func NewStore(ttl TTLStore) *Store {
	return &Store{ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key Key) (*Counter, error) {
	var c Counter
	found, err := s.ttl.Get(ctx, key.String(), &c)
	if err != nil {
		return nil, err
	}
	if !found || time.Now().After(c.ExpiresAt) {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) Increment(ctx context.Context, key Key, ttl time.Duration) (*Counter, error) {
	now := time.Now()
	c, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &Counter{Count: 0, WindowStartedAt: now}
	}
	c.Count++
	c.ExpiresAt = now.Add(ttl)
	if err := s.ttl.Set(ctx, key.String(), c, ttl); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) Reset(ctx context.Context, key Key) error {
	return s.ttl.Delete(ctx, key.String())
}

func (s *Store) IsOver(ctx context.Context, key Key, limit int) (bool, error) {
	c, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return c != nil && c.Count >= limit, nil
}
