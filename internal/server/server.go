package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aman-churiwal/quotagate/internal/config"
	"github.com/aman-churiwal/quotagate/internal/handler"
	"github.com/aman-churiwal/quotagate/internal/middleware"
	"github.com/aman-churiwal/quotagate/internal/proxy"
	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"github.com/aman-churiwal/quotagate/internal/service"
	"github.com/aman-churiwal/quotagate/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	router    *gin.Engine
	config    *config.Config
	backend   *storage.Backend
	logger    hclog.Logger
	limiters  map[string]*ratelimit.Limiter
	proxies   map[string]*proxy.Proxy
	gatherer  prometheus.Gatherer
	startTime time.Time
}

type Options struct {
	Logger   hclog.Logger
	Recorder ratelimit.Recorder
	Gatherer prometheus.Gatherer
}

func New(cfg *config.Config, backend *storage.Backend, opts Options) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:    gin.New(),
		config:    cfg,
		backend:   backend,
		logger:    opts.Logger,
		limiters:  make(map[string]*ratelimit.Limiter, len(cfg.Services)),
		proxies:   make(map[string]*proxy.Proxy, len(cfg.Services)),
		gatherer:  opts.Gatherer,
		startTime: time.Now(),
	}

	if err := s.initializeServices(opts.Recorder); err != nil {
		return nil, err
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) initializeServices(recorder ratelimit.Recorder) error {
	for _, svc := range s.config.Services {
		rl := svc.Limits(s.config.RateLimiting)

		limiter, err := ratelimit.New(s.backend.Store, rl.EnginePolicy(),
			ratelimit.WithLogger(s.logger.Named("ratelimit").With("service", svc.Name)),
			ratelimit.WithRecorder(recorder),
			ratelimit.WithKeyPrefix(s.config.Storage.KeyPrefix),
		)
		if err != nil {
			return fmt.Errorf("service %s: %w", svc.Name, err)
		}

		p, err := proxy.New(proxy.Config{
			Service:  svc.Name,
			Targets:  svc.Targets,
			Strategy: svc.LoadBalancer,
			Logger:   s.logger,
		})
		if err != nil {
			return fmt.Errorf("service %s: %w", svc.Name, err)
		}

		s.limiters[svc.Name] = limiter
		s.proxies[svc.Name] = p
		s.logger.Info("service registered", "service", svc.Name, "path", svc.Path, "targets", len(svc.Targets), "windows", len(rl.Limits().Enabled()))
	}

	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	if s.config.JWTSecret != "" {
		tokens := service.NewTokenService(s.config.JWTSecret, 0)
		usage := handler.NewUsageHandler(s.limiters)
		system := handler.NewSystemHandler(s.backend.Breaker)

		admin := s.router.Group("/admin", middleware.RequireAuth(tokens))
		{
			admin.GET("/status", s.adminStatus)
			admin.GET("/usage/:service", usage.Get)
			admin.GET("/breaker", system.CircuitBreakerStatus)
			admin.POST("/breaker/reset", system.ResetCircuitBreaker)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set, admin endpoints disabled")
	}

	s.setupProxyRoutes()
}

func (s *Server) setupProxyRoutes() {
	for _, svc := range s.config.Services {
		rl := svc.Limits(s.config.RateLimiting)
		p := s.proxies[svc.Name]

		group := s.router.Group(svc.Path, middleware.RateLimit(svc.Name, s.limiters[svc.Name], rl))
		group.Any("", p.Handle)
		group.Any("/*proxyPath", p.Handle)

		s.logger.Debug("registered proxy route", "path", svc.Path)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeHealthy := true
	if err := s.backend.Health.Ping(ctx); err != nil {
		storeHealthy = false
		s.logger.Warn("counter store health check failed", "backend", s.backend.Name, "error", err)
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !storeHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	checks := gin.H{
		"counter_store": storeHealthy,
	}
	if s.backend.Breaker != nil {
		checks["breaker"] = s.backend.Breaker.State().String()
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "quotagate",
		"backend":   s.backend.Name,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	services := make([]gin.H, 0, len(s.config.Services))
	for _, svc := range s.config.Services {
		policy := s.limiters[svc.Name].Policy()

		limits := gin.H{}
		for _, w := range policy.Limits.Enabled() {
			limits[w.String()] = policy.Limits[w]
		}
		services = append(services, gin.H{
			"name":           svc.Name,
			"path":           svc.Path,
			"targets":        s.proxies[svc.Name].Targets(),
			"limits":         limits,
			"fault_tolerant": policy.FaultTolerant,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"gateway":   "running",
		"backend":   s.backend.Name,
		"services":  services,
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().Unix(),
	})
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	s.logger.Info("starting gateway", "addr", addr, "environment", s.config.Environment)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
