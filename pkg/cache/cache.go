// Package cache stores opaque byte payloads under string keys with a TTL.
//
// Three backends are provided: [FileCache] for the CLI (one JSON file per
// entry under ~/.cache/depmap), [RedisCache] for servers sharing scan
// results, and [MemoryCache], a bounded in-process LRU used for HTTP
// responses. [NullCache] disables caching.
//
// Keys come from a [Keyer] so every backend shares one naming scheme:
//
//	k := cache.NewDefaultKeyer()
//	key := k.ScanKey(cache.ScanKeyOpts{Root: "/src/aports", Fingerprint: fp})
//	if data, ok, _ := c.Get(ctx, key); ok {
//	    pkgs, _ := io.ReadPackages(bytes.NewReader(data))
//	}
//
// All backends are safe for concurrent use.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store for serialized results.
type Cache interface {
	// Get returns the payload for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Clear empties c if the backend supports it and reports how many entries
// were removed. Backends without [Clearer] report ErrUnsupported.
func Clear(ctx context.Context, c Cache) (int, error) {
	if cl, ok := c.(Clearer); ok {
		return cl.Clear(ctx)
	}
	return 0, ErrUnsupported
}
