// Package cache provides a generic, expiring key/value cache used for data the
// authority client can cheaply rediscover, such as the tenant that owns a host.
// Secrets are not kept here: see the secretcache package.
package cache

import (
	"context"
)

// TTLCache stores values that expire a fixed time after they were written.
type TTLCache[T any] interface {
	// Get retrieves a value from the cache.
	// Returns the value, whether it was found, and any error.
	Get(ctx context.Context, key string) (T, bool, error)

	// Set stores a value, restarting its lifetime.
	Set(ctx context.Context, key string, value T) error

	// Invalidate removes a value from the cache.
	Invalidate(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
