package storage

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/quotagate/internal/ratelimit"
)

type memoryCounter struct {
	data      []byte
	version   ratelimit.Version
	expiresAt time.Time
}

// MemoryCounterStore keeps counters in process memory.
// It is safe for concurrent use but its state is local to the process, so every
// replica enforces its own limits.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	versions ratelimit.Version
	now      func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// live returns the counter for key unless it is missing or expired. Caller holds mu.
func (s *MemoryCounterStore) live(key string) (*memoryCounter, bool) {
	c, ok := s.counters[key]
	if !ok {
		return nil, false
	}
	if !c.expiresAt.IsZero() && !s.now().Before(c.expiresAt) {
		return nil, false
	}
	return c, true
}

func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int32, ratelimit.Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, ratelimit.NoVersion, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(key)
	if !ok {
		return 0, ratelimit.NoVersion, nil
	}

	value, err := decodeCount(c.data)
	if err != nil {
		return 0, ratelimit.NoVersion, err
	}
	return value, c.version, nil
}

func (s *MemoryCounterStore) CompareAndSwap(ctx context.Context, key string, value int32, expected ratelimit.Version, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(key)
	if expected == ratelimit.NoVersion {
		if ok {
			return ratelimit.ErrVersionConflict
		}
	} else if !ok || c.version != expected {
		return ratelimit.ErrVersionConflict
	}

	// versions are global so a recreated key never reuses an old token
	s.versions++
	next := &memoryCounter{
		data:    encodeCount(value),
		version: s.versions,
	}
	if ttl > 0 {
		next.expiresAt = s.now().Add(ttl)
	}
	s.counters[key] = next

	return nil
}

// DeleteExpired removes counters whose retention ended before the given time
func (s *MemoryCounterStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, c := range s.counters {
		if !c.expiresAt.IsZero() && !before.Before(c.expiresAt) {
			delete(s.counters, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryCounterStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Size returns the number of stored counters, expired ones included
func (s *MemoryCounterStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
