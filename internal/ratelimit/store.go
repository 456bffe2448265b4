package ratelimit

import (
	"context"
	"time"
)

// Version is an opaque token returned by a CounterStore and handed back on
// CompareAndSwap. NoVersion means the counter does not exist.
type Version uint64

const NoVersion Version = 0

// CounterStore is the optimistic-concurrency key/value store counters live in.
// Implementations must be safe for concurrent use and must not retry on their own.
type CounterStore interface {
	// Get returns the stored count and its version.
	// A missing (never written or evicted) key yields 0, NoVersion and a nil error.
	Get(ctx context.Context, key string) (int32, Version, error)

	// CompareAndSwap writes value if the stored version equals expected.
	// With expected == NoVersion the key is created and the call fails if it already exists.
	// A mismatch returns ErrVersionConflict. ttl is a retention hint for the key.
	CompareAndSwap(ctx context.Context, key string, value int32, expected Version, ttl time.Duration) error
}
