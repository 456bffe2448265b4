package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aman-churiwal/quotagate/internal/loadbalancer"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

// Proxy forwards admitted requests to one of a service's targets
type Proxy struct {
	service  string
	targets  []string
	proxies  map[string]*httputil.ReverseProxy
	balancer loadbalancer.Strategy
	logger   hclog.Logger
}

type Config struct {
	Service  string
	Targets  []string
	Strategy string
	Logger   hclog.Logger
}

func New(cfg Config) (*Proxy, error) {
	if len(cfg.Targets) == 0 {
		return nil, errors.New("at least one target is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	balancer, err := loadbalancer.NewStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		service:  cfg.Service,
		targets:  cfg.Targets,
		proxies:  make(map[string]*httputil.ReverseProxy, len(cfg.Targets)),
		balancer: balancer,
		logger:   cfg.Logger.Named("proxy").With("service", cfg.Service),
	}

	for _, targetURL := range cfg.Targets {
		target, err := url.Parse(targetURL)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", targetURL, err)
		}
		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("target %q: scheme and host are required", targetURL)
		}

		rp := httputil.NewSingleHostReverseProxy(target)
		rp.ErrorHandler = p.errorHandler(targetURL)
		p.proxies[targetURL] = rp
	}

	return p, nil
}

func (p *Proxy) errorHandler(target string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.Warn("upstream request failed", "target", target, "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"Bad Gateway"}`))
	}
}

// Forwards the request to the next target
func (p *Proxy) Handle(c *gin.Context) {
	target := p.balancer.Next(p.targets)
	if tracker, ok := p.balancer.(loadbalancer.ConnectionTracker); ok {
		defer tracker.Done(target)
	}

	rp, ok := p.proxies[target]
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No backend available",
		})
		return
	}

	req := c.Request
	req.Header.Set("X-Forwarded-Host", req.Host)
	if clientIP := c.ClientIP(); clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}

	rp.ServeHTTP(c.Writer, req)
}

func (p *Proxy) Targets() []string {
	return p.targets
}
