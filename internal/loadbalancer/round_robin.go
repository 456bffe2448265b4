package loadbalancer

import "sync/atomic"

// RoundRobin cycles through targets in order
type RoundRobin struct {
	next atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Returns the next target, or "" when there are none
func (r *RoundRobin) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	n := r.next.Add(1) - 1
	return targets[n%uint64(len(targets))]
}

func (r *RoundRobin) Name() string {
	return "round_robin"
}
