// Package cache stores rendered documents between invocations. The feed
// command reuses a recently rendered Atom export through it instead of
// re-querying the database; the cache subcommands manage the file
// backend. Backends are a directory of files, Redis, or a no-op cache
// for tests.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is byte storage with per-entry expiry. A miss is
// (nil, false, nil), never an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key derives the cache key for an upstream URL. Hashing keeps keys
// filesystem-safe and bounds their length.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
