package store

import (
	"context"
	"time"
)

// Store defines the interface for window counter storage backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Increment atomically increments the counter for the given key and
	// returns the new count, the TTL until the window resets, and any error.
	// The first increment of a fresh window starts the window: the expiry is
	// set to the window duration and is never overwritten by later increments.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// Peek retrieves the current count and remaining TTL for the given key
	// without incrementing. Returns a zero count and zero TTL if the key
	// doesn't exist.
	Peek(ctx context.Context, key string) (count int64, ttl time.Duration, err error)

	// Reset removes the counter for the given key, ending its window early.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
