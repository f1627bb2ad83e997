package cache

import (
	"context"
	"time"
)

// NullCache never stores anything. Checkers degrade to treating every
// page as new-but-deduplicated, which the store's URL uniqueness absorbs.
type NullCache struct{}

// NewNullCache creates a cache that always misses.
func NewNullCache() *NullCache { return &NullCache{} }

func (*NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (*NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

func (*NullCache) Delete(ctx context.Context, key string) error { return nil }

func (*NullCache) Close() error { return nil }

var _ Cache = (*NullCache)(nil)
