package ratelimit

import "context"

// Evaluate reads the current usage of every enforced window.
//
// Every enforced window is read, even past the first exhausted one, so headers
// can describe all of them. The first exhausted window becomes the blocking one.
// A failed read stops evaluation and returns the partial verdict with a
// *StoreFaultError.
func (l *Limiter) Evaluate(ctx context.Context, id Identity, b Boundaries) (*Verdict, error) {
	enabled := l.policy.Limits.Enabled()
	verdict := &Verdict{
		Usages:   make(map[Window]Usage, len(enabled)),
		Blocking: NoWindow,
	}

	for _, w := range enabled {
		limit := l.policy.Limits[w]
		key := l.keys.Key(id, b, w)

		current, version, err := l.store.Get(ctx, key)
		if err != nil {
			return verdict, &StoreFaultError{Window: w, Key: key, Err: err}
		}

		remaining := limit - current
		verdict.Usages[w] = Usage{
			Limit:     limit,
			Remaining: remaining,
			Current:   current,
			Version:   version,
		}

		if remaining <= 0 && verdict.Blocking == NoWindow {
			verdict.Blocking = w
		}
	}

	return verdict, nil
}
