package ratelimit

import (
	"context"
	"errors"
)

const DefaultMaxAttempts = 10

// Commit adds one unit to the counter of every evaluated window.
//
// Each window runs its own bounded compare-and-swap loop: a version conflict
// re-reads the counter and retries with the fresh value, any other error just
// burns the attempt. Windows that could not be committed are returned joined as
// *IncrementExhaustedError values; the caller should only log them, since the
// request has already been admitted.
func (l *Limiter) Commit(ctx context.Context, id Identity, b Boundaries, usages map[Window]Usage) error {
	var errs []error
	for _, w := range Windows {
		usage, ok := usages[w]
		if !ok {
			continue
		}
		if err := l.increment(ctx, l.keys.Key(id, b, w), w, usage, b); err != nil {
			l.recorder.IncrementFailed(id.Scope, w)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Limiter) increment(ctx context.Context, key string, w Window, usage Usage, b Boundaries) error {
	value, version := usage.Current, usage.Version
	ttl := b.TTL(w)

	var lastErr error
	attempts := 0
	for attempts < l.maxAttempts {
		attempts++

		err := l.store.CompareAndSwap(ctx, key, value+1, version, ttl)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrVersionConflict) {
			fresh, freshVersion, getErr := l.store.Get(ctx, key)
			if getErr == nil {
				value, version = fresh, freshVersion
			}
			continue
		}

		if ctx.Err() != nil {
			break
		}
	}

	return &IncrementExhaustedError{Window: w, Key: key, Attempts: attempts, LastErr: lastErr}
}
