package store

import (
	"context"
	"time"
)

// NoTTL is returned by KV.TTL for keys that exist but carry no expiry.
const NoTTL = time.Duration(-1)

// KV is a key-value store with per-key expiry, used for refresh token
// records, access token blacklisting and session bookkeeping. The redis
// driver backs it in production; the in-memory driver serves as a degraded
// fallback when no redis address is configured.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores key=value. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Exists reports whether key is present (and unexpired).
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns all keys matching a glob pattern (e.g. "refresh_token:*").
	Keys(ctx context.Context, pattern string) ([]string, error)

	// TTL returns the remaining lifetime of key, NoTTL when the key has no
	// expiry, or ErrNotFound when the key is missing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}
