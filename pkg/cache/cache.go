// Package cache provides pluggable byte caches for repository indexes and
// fetched artifacts.
//
// Three backends are provided:
//
//   - [FileCache]: entries on disk, suitable for CLI usage
//   - [RedisCache]: shared cache for server deployments
//   - [NullCache]: disabled caching
//
// Keys are namespaced by convention with a "type:" prefix ("index:...",
// "artifact:..."); the prefix feeds cache observability hooks. Use [Scoped]
// to prepend a tenant or context prefix without touching call sites.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache stores opaque byte values under string keys with an optional TTL.
// Implementations must be safe for concurrent use unless documented
// otherwise.
type Cache interface {
	// Get retrieves a value. hit is false on a miss; err reports backend
	// failures only, never misses.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores a value. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// keyType extracts the conventional "type:" prefix from a key for
// observability hooks.
func keyType(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "default"
}
