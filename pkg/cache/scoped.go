package cache

import (
	"context"
	"time"
)

// Scoped wraps a Cache with a key prefix for multi-tenant isolation.
// Different users or contexts sharing one backend get separate namespaces.
//
// Example usage:
//
//	// User-specific entries for private repositories
//	userCache := cache.NewScoped(backend, "user:abc123:")
type Scoped struct {
	inner  Cache
	prefix string
}

// NewScoped creates a cache view that prepends prefix to every key.
func NewScoped(inner Cache, prefix string) Cache {
	return &Scoped{inner: inner, prefix: prefix}
}

// Get retrieves a value under the prefixed key.
func (c *Scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.inner.Get(ctx, c.prefix+key)
}

// Set stores a value under the prefixed key.
func (c *Scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.inner.Set(ctx, c.prefix+key, data, ttl)
}

// Delete removes the prefixed key.
func (c *Scoped) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, c.prefix+key)
}

// Close closes the underlying cache.
func (c *Scoped) Close() error {
	return c.inner.Close()
}

// Ensure Scoped implements Cache.
var _ Cache = (*Scoped)(nil)
