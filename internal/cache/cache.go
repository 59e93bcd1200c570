// Package cache provides in-process caching of transfer records.
package cache

import (
	"context"
	"time"
)

// Cache is a keyed store with per-entry expiry.
type Cache[V any] interface {
	// Get retrieves a cached value by key.
	Get(ctx context.Context, key string) (V, bool)
	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, val V, ttl time.Duration)
	// Delete removes a cached value.
	Delete(ctx context.Context, key string)
	// Purge removes all cached values.
	Purge(ctx context.Context)
}
