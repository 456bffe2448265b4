package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aman-churiwal/quotagate/internal/config"
	"github.com/aman-churiwal/quotagate/internal/metrics"
	"github.com/aman-churiwal/quotagate/internal/service"
	"github.com/aman-churiwal/quotagate/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func testConfig(upstream string) *config.Config {
	cfg := config.Default()
	cfg.JWTSecret = testSecret
	cfg.RateLimiting.Year = 2

	search := config.DefaultRateLimitConfig()
	search.Year = 1
	search.LimitBy = config.LimitByHeader
	search.HeaderName = "X-Consumer"

	cfg.Services = []config.ServiceConfig{
		{Name: "orders", Path: "/orders", Targets: []string{upstream}},
		{Name: "search", Path: "/search", Targets: []string{upstream}, RateLimiting: &search},
	}
	return cfg
}

type fixture struct {
	server   *Server
	router   *gin.Engine
	backend  *storage.Backend
	upstream *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("upstream:" + r.URL.Path))
	}))
	t.Cleanup(upstream.Close)

	cfg := testConfig(upstream.URL)
	require.NoError(t, cfg.Validate())

	backend, err := storage.Open(cfg, hclog.NewNullLogger())
	require.NoError(t, err)

	recorder := metrics.NewPrometheus()
	registry := prometheus.NewRegistry()
	registry.MustRegister(recorder)

	srv, err := New(cfg, backend, Options{Recorder: recorder, Gatherer: registry})
	require.NoError(t, err)

	return &fixture{server: srv, router: srv.GetRouter(), backend: backend, upstream: upstream}
}

// notifyingRecorder gives the recorder the CloseNotify method that
// httputil.ReverseProxy reaches through gin's writer
type notifyingRecorder struct {
	*httptest.ResponseRecorder
}

func (notifyingRecorder) CloseNotify() <-chan bool {
	return make(chan bool)
}

func (f *fixture) do(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "198.51.100.7:40000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(notifyingRecorder{w}, req)
	return w
}

func adminHeaders(t *testing.T) map[string]string {
	t.Helper()
	token, err := service.NewTokenService(testSecret, time.Hour).Issue("ops", "admin")
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestProxiedRequestsAreLimited(t *testing.T) {
	f := newFixture(t)

	for i, remaining := range []string{"1", "0"} {
		w := f.do(http.MethodGet, "/orders/42", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "upstream:/orders/42", w.Body.String())
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit-Year"))
		assert.Equal(t, remaining, w.Header().Get("X-RateLimit-Remaining-Year"))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}

	w := f.do(http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "API rate limit exceeded!", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestServiceOverride(t *testing.T) {
	f := newFixture(t)
	alice := map[string]string{"X-Consumer": "alice"}

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/search?q=go", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/search?q=go", alice).Code)

	// orders keeps its own counters for the same client
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/orders", alice).Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	f.backend.Health = downPinger{}
	w = f.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestAdminUsage(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/admin/usage/orders?identity=198.51.100.7", nil).Code)

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/orders", nil).Code)

	w := f.do(http.MethodGet, "/admin/usage/orders?identity=198.51.100.7", adminHeaders(t))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Blocked bool `json:"blocked"`
		Windows []struct {
			Window  string `json:"window"`
			Current int32  `json:"current"`
		} `json:"windows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Blocked)
	require.Len(t, body.Windows, 1)
	assert.Equal(t, "year", body.Windows[0].Window)
	assert.Equal(t, int32(1), body.Windows[0].Current)

	w = f.do(http.MethodGet, "/admin/status", adminHeaders(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"search"`)
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig("http://127.0.0.1:1")
	cfg.JWTSecret = ""

	backend, err := storage.Open(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	srv, err := New(cfg, backend, Options{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		f.do(http.MethodGet, "/orders", nil)
	}

	w := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `quotagate_ratelimit_decisions_total{outcome="allowed",service="orders"} 2`)
	assert.Contains(t, w.Body.String(), `quotagate_ratelimit_decisions_total{outcome="blocked",service="orders"} 1`)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
