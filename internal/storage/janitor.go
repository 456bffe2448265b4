package storage

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Sweeper is implemented by stores that do not expire counters on their own
type Sweeper interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RunJanitor deletes expired counters every interval until ctx is done
func RunJanitor(ctx context.Context, sweeper Sweeper, interval time.Duration, logger hclog.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	logger = logger.Named("janitor")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			deleted, err := sweeper.DeleteExpired(ctx, now.UTC())
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Debug("expired counters removed", "count", deleted)
			}
		}
	}
}
