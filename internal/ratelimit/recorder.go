package ratelimit

// Outcome labels how a request left the limiter
type Outcome string

const (
	OutcomeAllowed     Outcome = "allowed"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeFaultOpen   Outcome = "fault_open"
	OutcomeFaultClosed Outcome = "fault_closed"
)

// Recorder receives limiter observations. Implementations must be safe for concurrent use.
type Recorder interface {
	Decision(scope string, outcome Outcome)
	StoreFault(scope string)
	IncrementFailed(scope string, w Window)
}

// noopRecorder keeps the hot path free of nil checks
type noopRecorder struct{}

func (noopRecorder) Decision(string, Outcome)       {}
func (noopRecorder) StoreFault(string)              {}
func (noopRecorder) IncrementFailed(string, Window) {}
