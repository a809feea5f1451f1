// Package cache holds the two caches used by MinutoDash.
//
// [Store] is the typed, bounded TTL store that every feed client keeps its
// decoded records in. [Cache] is the byte-level contract used by the backend
// proxy to memoise whole HTTP response bodies; it has an in-process
// ristretto implementation ([L1]), a fail-soft Redis layer ([L2]) and a
// two-level combination of both ([Tiered]).
package cache

import (
	"context"
	"time"
)

// Cache is the byte-level response cache contract.
type Cache interface {
	// Get retrieves a value by key. The boolean indicates a cache hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// GetOrSet returns the cached value for key. On a miss it calls loader,
	// sharing one call between concurrent callers for the same key, and
	// stores a successful result.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error)

	// Close releases resources held by the cache.
	Close() error
}

// Stats is implemented by caches that can report how many entries they hold.
type Stats interface {
	Len() int
}
