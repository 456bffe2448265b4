package loadbalancer

import "fmt"

// Creates a balancing strategy by name; empty selects round robin
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "round-robin", "round_robin", "":
		return NewRoundRobin(), nil
	case "random":
		return NewRandom(), nil
	case "least-connections", "least_connections":
		return NewLeastConnections(), nil
	default:
		return nil, fmt.Errorf("unknown load balancing strategy: %s", name)
	}
}
