package ratelimit

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"
)

type fakeEntry struct {
	value   int32
	version Version
}

// fakeStore is an in-memory CounterStore that can inject failures and spurious
// version conflicts.
type fakeStore struct {
	mu   sync.Mutex
	data map[string]fakeEntry
	next Version

	getErr       error
	casErr       error
	conflictRate float64
	rng          *rand.Rand
	yield        bool

	gets     int
	casCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]fakeEntry)}
}

func (s *fakeStore) withConflicts(rate float64, seed int64) *fakeStore {
	s.conflictRate = rate
	s.rng = rand.New(rand.NewSource(seed))
	s.yield = true
	return s
}

func (s *fakeStore) Get(ctx context.Context, key string) (int32, Version, error) {
	if s.yield {
		runtime.Gosched()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	if s.getErr != nil {
		return 0, NoVersion, s.getErr
	}

	e, ok := s.data[key]
	if !ok {
		return 0, NoVersion, nil
	}
	return e.value, e.version, nil
}

func (s *fakeStore) CompareAndSwap(ctx context.Context, key string, value int32, expected Version, ttl time.Duration) error {
	if s.yield {
		runtime.Gosched()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.casCalls++
	if s.casErr != nil {
		return s.casErr
	}
	if s.rng != nil && s.rng.Float64() < s.conflictRate {
		return ErrVersionConflict
	}

	e, ok := s.data[key]
	switch {
	case expected == NoVersion && ok:
		return ErrVersionConflict
	case expected != NoVersion && (!ok || e.version != expected):
		return ErrVersionConflict
	}

	s.next++
	s.data[key] = fakeEntry{value: value, version: s.next}
	return nil
}

func (s *fakeStore) set(key string, value int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.data[key] = fakeEntry{value: value, version: s.next}
}

func (s *fakeStore) value(key string) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key].value
}

func (s *fakeStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
