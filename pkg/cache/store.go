package cache

import (
	"context"
	"time"
)

// Store is a key-value backend for cache entries. Get returns (nil, nil)
// when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Sweeper is implemented by stores that must evict expired entries themselves
type Sweeper interface {
	Sweep(now time.Time) int
}
