package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a time-bounded mirror of authoritative data. Deleting any entry is
// always safe; it is never the source of truth.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// NopStore caches nothing, so every read goes to the authoritative store.
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrMiss
}

func (NopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NopStore) Invalidate(context.Context, ...string) error {
	return nil
}
