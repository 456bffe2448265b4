package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// CircuitBreaker stops calling a failing counter backend for a cool-down period
type CircuitBreaker struct {
	mu              sync.Mutex
	name            string
	state           State
	failures        int
	probes          int
	openedAt        time.Time
	lastStateChange time.Time

	maxFailures     int
	coolDown        time.Duration
	halfOpenSuccess int
	isFailure       func(error) bool
	now             func() time.Time
	logger          hclog.Logger
}

type Config struct {
	Name            string
	MaxFailures     int           // Default: 5
	CoolDown        time.Duration // Default: 30 seconds
	HalfOpenSuccess int           // Default: 1

	// IsFailure decides which errors count against the backend.
	// Defaults to every non-nil error.
	IsFailure func(error) bool

	Now    func() time.Time
	Logger hclog.Logger
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.HalfOpenSuccess <= 0 {
		cfg.HalfOpenSuccess = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &CircuitBreaker{
		name:            cfg.Name,
		state:           StateClosed,
		maxFailures:     cfg.MaxFailures,
		coolDown:        cfg.CoolDown,
		halfOpenSuccess: cfg.HalfOpenSuccess,
		isFailure:       cfg.IsFailure,
		now:             cfg.Now,
		logger:          cfg.Logger.Named("breaker"),
		lastStateChange: cfg.Now(),
	}
}

// Call runs fn unless the breaker is open. Errors rejected by IsFailure
// are returned to the caller but leave the breaker untouched.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.isFailure(err) {
		cb.onFailure(err)
	} else {
		cb.onSuccess()
	}
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if cb.now().Sub(cb.openedAt) < cb.coolDown {
		return ErrCircuitOpen
	}

	cb.setState(StateHalfOpen)
	cb.probes = 0
	return nil
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.failures++

	switch {
	case cb.state == StateHalfOpen:
		cb.open(err)
	case cb.state == StateClosed && cb.failures >= cb.maxFailures:
		cb.open(err)
	}
}

func (cb *CircuitBreaker) open(err error) {
	cb.openedAt = cb.now()
	cb.probes = 0
	cb.setState(StateOpen)
	cb.logger.Warn("backend calls suspended", "name", cb.name, "failures", cb.failures, "cool_down", cb.coolDown, "error", err)
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.probes++
		if cb.probes >= cb.halfOpenSuccess {
			cb.failures = 0
			cb.setState(StateClosed)
			cb.logger.Info("backend calls resumed", "name", cb.name)
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) setState(next State) {
	if cb.state == next {
		return
	}
	cb.logger.Debug("state change", "name", cb.name, "from", cb.state, "to", next)
	cb.state = next
	cb.lastStateChange = cb.now()
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.probes = 0
	cb.setState(StateClosed)
}

// Snapshot is a point-in-time view used by the health endpoint
type Snapshot struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	LastStateChange time.Time `json:"last_state_change"`
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		LastStateChange: cb.lastStateChange,
	}
}
