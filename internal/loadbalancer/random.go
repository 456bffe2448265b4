package loadbalancer

import "math/rand/v2"

// Random picks a uniformly random target on every request
type Random struct {
	intn func(n int) int
}

func NewRandom() *Random {
	return &Random{intn: rand.IntN}
}

func (r *Random) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}
	return targets[r.intn(len(targets))]
}

func (r *Random) Name() string {
	return "random"
}
