package loadbalancer

// Strategy picks the upstream target for the next proxied request
type Strategy interface {
	Next(targets []string) string
	Name() string
}
