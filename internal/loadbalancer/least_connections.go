package loadbalancer

import "sync"

// ConnectionTracker is implemented by strategies that count in-flight
// requests. Next reserves a slot on the returned target and Done frees it.
type ConnectionTracker interface {
	Done(target string)
}

// LeastConnections sends each request to the target with the fewest
// requests in flight. Ties go to the earliest target in the list.
type LeastConnections struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func NewLeastConnections() *LeastConnections {
	return &LeastConnections{
		inFlight: make(map[string]int),
	}
}

func (l *LeastConnections) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	selected := targets[0]
	for _, target := range targets[1:] {
		if l.inFlight[target] < l.inFlight[selected] {
			selected = target
		}
	}
	l.inFlight[selected]++
	return selected
}

func (l *LeastConnections) Done(target string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch n := l.inFlight[target]; {
	case n > 1:
		l.inFlight[target] = n - 1
	case n == 1:
		delete(l.inFlight, target)
	}
}

// InFlight reports the requests currently held by target
func (l *LeastConnections) InFlight(target string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[target]
}

func (l *LeastConnections) Name() string {
	return "least_connections"
}
