package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/quotagate/internal/circuitbreaker"
	"github.com/aman-churiwal/quotagate/internal/config"
	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"github.com/hashicorp/go-hclog"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is the counter store selected by configuration plus what the
// process needs to run and stop it
type Backend struct {
	Name    string
	Store   ratelimit.CounterStore
	Health  Pinger
	Sweeper Sweeper                        // nil when the backend expires counters itself
	Breaker *circuitbreaker.CircuitBreaker // nil unless storage.breaker.enabled

	closers []func() error
}

func Open(cfg *config.Config, logger hclog.Logger) (*Backend, error) {
	b := &Backend{Name: cfg.Storage.Backend}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		store := NewMemoryCounterStore()
		b.Store, b.Health, b.Sweeper = store, store, store

	case config.BackendRedis:
		client, err := NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		store := NewRedisCounterStore(client.Client())
		b.Store, b.Health = store, store
		b.closers = append(b.closers, client.Close)

	case config.BackendPostgres:
		db, err := NewPostgres(cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate counters table: %w", err)
		}
		store := NewPostgresCounterStore(db)
		b.Store, b.Health, b.Sweeper = store, store, store
		b.closers = append(b.closers, db.Close)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if bc := cfg.Storage.Breaker; bc.Enabled {
		guarded := NewGuardedStore(b.Store, circuitbreaker.Config{
			Name:        cfg.Storage.Backend,
			MaxFailures: bc.MaxFailures,
			CoolDown:    time.Duration(bc.CoolDownSeconds) * time.Second,
			Logger:      logger,
		})
		b.Store = guarded
		b.Breaker = guarded.Breaker()
	}

	logger.Info("counter store ready", "backend", b.Name, "breaker", b.Breaker != nil)
	return b, nil
}

func (b *Backend) Close() error {
	var errs []error
	for _, closeFn := range b.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}
