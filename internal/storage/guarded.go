package storage

import (
	"context"
	"errors"
	"time"

	"github.com/aman-churiwal/quotagate/internal/circuitbreaker"
	"github.com/aman-churiwal/quotagate/internal/ratelimit"
)

// GuardedStore puts a circuit breaker in front of a counter store so an
// unreachable backend fails fast instead of holding every request.
type GuardedStore struct {
	next    ratelimit.CounterStore
	breaker *circuitbreaker.CircuitBreaker
}

func NewGuardedStore(next ratelimit.CounterStore, cfg circuitbreaker.Config) *GuardedStore {
	cfg.IsFailure = IsBackendFailure
	return &GuardedStore{
		next:    next,
		breaker: circuitbreaker.New(cfg),
	}
}

// IsBackendFailure reports whether err says something about backend health.
// Lost swaps and cancelled requests do not.
func IsBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ratelimit.ErrVersionConflict) && !errors.Is(err, context.Canceled)
}

func (g *GuardedStore) Get(ctx context.Context, key string) (int32, ratelimit.Version, error) {
	var (
		value   int32
		version ratelimit.Version
	)
	err := g.breaker.Call(func() error {
		var err error
		value, version, err = g.next.Get(ctx, key)
		return err
	})
	return value, version, err
}

func (g *GuardedStore) CompareAndSwap(ctx context.Context, key string, value int32, expected ratelimit.Version, ttl time.Duration) error {
	return g.breaker.Call(func() error {
		return g.next.CompareAndSwap(ctx, key, value, expected, ttl)
	})
}

func (g *GuardedStore) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}
