// Package cache provides a read-through cache with tag-based
// invalidation. Cached values carry a set of tags; invalidating a tag
// drops every value carrying it. Two implementations exist: an
// in-process map for single-instance deployments and tests, and a Redis
// backing for multi-instance deployments.
package cache

import (
	"context"
	"time"
)

// TTLs for cached values. Entity data is cached very briefly so that
// cross-instance writes without shared invalidation converge quickly;
// user-by-email lookups change rarely and get a long TTL.
const (
	EntityTTL      = 10 * time.Second
	UserByEmailTTL = time.Hour
)

// LoadFunc produces the value for a cache miss, already serialized.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Cache is a read-through cache with tag invalidation.
type Cache interface {
	// GetOrLoad returns the cached value for key, calling load on a
	// miss and storing the result under the given tags for ttl. Load
	// errors are returned without caching.
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, tags []string, load LoadFunc) ([]byte, error)

	// Invalidate drops every value carrying any of the given tags.
	Invalidate(ctx context.Context, tags ...string) error
}
