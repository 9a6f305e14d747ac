package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-boxoffice/internal/logger"
)

// GetOrLoad serves key from store, falling back to load on a miss and
// repopulating the entry with ttl. Cache faults degrade to load; they are
// logged but never returned.
func GetOrLoad[T any](ctx context.Context, store Store, log *logger.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	raw, err := store.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		jsonErr := json.Unmarshal(raw, &cached)
		if jsonErr == nil {
			log.LogCache("HIT", key, "served from cache")
			return cached, nil
		}
		log.Warn("CACHE", fmt.Sprintf("Dropping undecodable entry %s: %v", key, jsonErr))
		_ = store.Invalidate(ctx, key)
	case errors.Is(err, ErrMiss):
		log.LogCache("MISS", key, "loading from database")
	default:
		log.Warn("CACHE", fmt.Sprintf("Cache read failed for %s, falling back: %v", key, err))
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		log.Warn("CACHE", fmt.Sprintf("Failed to encode %s: %v", key, err))
		return value, nil
	}
	if err := store.Set(ctx, key, payload, ttl); err != nil {
		log.Warn("CACHE", fmt.Sprintf("Failed to populate %s: %v", key, err))
	}
	return value, nil
}

// Invalidate removes keys, logging instead of failing when the cache is
// unreachable; the TTL bounds staleness in that case.
func Invalidate(ctx context.Context, store Store, log *logger.Logger, keys ...string) {
	if err := store.Invalidate(ctx, keys...); err != nil {
		log.Error("CACHE", fmt.Sprintf("Failed to invalidate %v: %v", keys, err))
		return
	}
	log.LogCache("INVALIDATE", fmt.Sprintf("%v", keys), "removed")
}
