package circuitbreaker

type State int

const (
	// StateClosed - backend calls pass through
	StateClosed State = iota

	// StateOpen - backend calls fail fast with ErrCircuitOpen
	StateOpen

	// StateHalfOpen - a probe call decides whether to close again
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
