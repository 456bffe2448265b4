package ratelimit

import "fmt"

// Disabled is the conventional limit for a window that is not enforced.
// Any negative limit disables its window.
const Disabled int32 = -1

// Limits maps a window to its request limit
type Limits map[Window]int32

// NewLimits returns limits with every window disabled
func NewLimits() Limits {
	l := make(Limits, windowCount)
	for _, w := range Windows {
		l[w] = Disabled
	}
	return l
}

// Enabled returns the enforced windows, finest first
func (l Limits) Enabled() []Window {
	enabled := make([]Window, 0, windowCount)
	for _, w := range Windows {
		if limit, ok := l[w]; ok && limit >= 0 {
			enabled = append(enabled, w)
		}
	}
	return enabled
}

func (l Limits) clone() Limits {
	c := make(Limits, len(l))
	for w, limit := range l {
		c[w] = limit
	}
	return c
}

// Identity addresses a client within a scope (the service or route it calls)
type Identity struct {
	Scope string
	Value string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s", id.Scope, id.Value)
}

// Usage is the state of one window's counter at evaluation time
type Usage struct {
	Limit     int32
	Remaining int32
	Current   int32
	Version   Version
}

// Verdict is the result of evaluating every enforced window for one request
type Verdict struct {
	Usages map[Window]Usage

	// Blocking is the first exhausted window, or NoWindow
	Blocking Window
}

func (v *Verdict) Blocked() bool {
	return v != nil && v.Blocking != NoWindow
}

// Decision is what the host pipeline acts on
type Decision struct {
	Allow bool

	// Headers to attach to the response. Empty when client headers are hidden,
	// except for Retry-After on blocked requests.
	Headers map[string]string

	// Window used for the aggregate RateLimit-* headers, NoWindow when nothing is enforced
	Representative Window

	// Seconds until the representative window resets
	Reset int64

	// Set when the decision was reached without consulting the store (fail open)
	Degraded bool
}
