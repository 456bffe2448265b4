package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Policy is the immutable limiter configuration of one scope
type Policy struct {
	Limits Limits

	// FaultTolerant admits requests when the counter store cannot be read
	FaultTolerant bool

	// HideClientHeaders suppresses rate-limit headers (Retry-After is still sent on blocks)
	HideClientHeaders bool
}

// Limiter is the admission engine for one scope.
// It holds no per-request state and is safe for concurrent use.
type Limiter struct {
	store       CounterStore
	policy      Policy
	keys        KeyBuilder
	maxAttempts int
	logger      hclog.Logger
	recorder    Recorder
}

type Option func(*Limiter)

func WithLogger(logger hclog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(l *Limiter) {
		if r != nil {
			l.recorder = r
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) {
		l.keys.Prefix = prefix
	}
}

// WithMaxAttempts bounds the compare-and-swap loop of each counter increment
func WithMaxAttempts(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func New(store CounterStore, policy Policy, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}

	limits := NewLimits()
	for w, limit := range policy.Limits {
		if !w.valid() {
			continue
		}
		limits[w] = limit
	}
	policy.Limits = limits

	l := &Limiter{
		store:       store,
		policy:      policy,
		keys:        KeyBuilder{Prefix: DefaultKeyPrefix},
		maxAttempts: DefaultMaxAttempts,
		logger:      hclog.NewNullLogger(),
		recorder:    noopRecorder{},
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Policy returns a copy of the limiter's policy
func (l *Limiter) Policy() Policy {
	p := l.policy
	p.Limits = l.policy.Limits.clone()
	return p
}

// Admit decides a single request made by id at now, and commits its usage if allowed.
//
// A counter read failure is returned as a *StoreFaultError unless the policy is
// fault tolerant, in which case the request is admitted without headers.
func (l *Limiter) Admit(ctx context.Context, id Identity, now time.Time) (Decision, error) {
	b := Truncate(now)

	verdict, err := l.Evaluate(ctx, id, b)
	if err != nil {
		l.recorder.StoreFault(id.Scope)
		if !l.policy.FaultTolerant {
			l.recorder.Decision(id.Scope, OutcomeFaultClosed)
			l.logger.Error("failed to get usage", "identity", id.String(), "error", err)
			return Decision{Representative: NoWindow}, err
		}

		l.recorder.Decision(id.Scope, OutcomeFaultOpen)
		l.logger.Error("failed to get usage, allowing request", "identity", id.String(), "error", err)
		return Decision{
			Allow:          true,
			Headers:        map[string]string{},
			Representative: NoWindow,
			Degraded:       true,
		}, nil
	}

	decision := Decide(verdict, b, l.policy.HideClientHeaders)
	if !decision.Allow {
		l.recorder.Decision(id.Scope, OutcomeBlocked)
		l.logger.Debug("request blocked", "identity", id.String(), "window", verdict.Blocking.String(), "retry_after", decision.Reset)
		return decision, nil
	}

	l.recorder.Decision(id.Scope, OutcomeAllowed)
	if err := l.Commit(ctx, id, b, verdict.Usages); err != nil {
		l.logger.Warn("could not increment counters", "identity", id.String(), "error", err)
	}

	return decision, nil
}

// Usage evaluates id at now without consuming anything
func (l *Limiter) Usage(ctx context.Context, id Identity, now time.Time) (*Verdict, error) {
	return l.Evaluate(ctx, id, Truncate(now))
}
