package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aman-churiwal/quotagate/internal/circuitbreaker"
	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"github.com/aman-churiwal/quotagate/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (int32, ratelimit.Version, error) {
	return 0, ratelimit.NoVersion, errors.New("i/o timeout")
}

func (failingStore) CompareAndSwap(context.Context, string, int32, ratelimit.Version, time.Duration) error {
	return errors.New("i/o timeout")
}

func newLimiter(t *testing.T, store ratelimit.CounterStore, limits map[ratelimit.Window]int32) *ratelimit.Limiter {
	t.Helper()
	l := ratelimit.NewLimits()
	for w, n := range limits {
		l[w] = n
	}
	limiter, err := ratelimit.New(store, ratelimit.Policy{Limits: l})
	require.NoError(t, err)
	return limiter
}

func usageRouter(h *UsageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/usage/:service", h.Get)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestUsageReportsWithoutConsuming(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 45, 0, time.UTC)
	limiter := newLimiter(t, storage.NewMemoryCounterStore(), map[ratelimit.Window]int32{
		ratelimit.Minute: 2,
		ratelimit.Hour:   100,
	})
	id := ratelimit.Identity{Scope: "orders", Value: "10.0.0.1"}
	for i := 0; i < 2; i++ {
		_, err := limiter.Admit(context.Background(), id, at)
		require.NoError(t, err)
	}

	h := NewUsageHandler(map[string]*ratelimit.Limiter{"orders": limiter})
	h.now = func() time.Time { return at }
	r := usageRouter(h)

	for i := 0; i < 2; i++ {
		w := get(r, "/admin/usage/orders?identity=10.0.0.1")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Blocked        bool          `json:"blocked"`
			BlockingWindow string        `json:"blocking_window"`
			Windows        []windowUsage `json:"windows"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

		assert.True(t, body.Blocked)
		assert.Equal(t, "minute", body.BlockingWindow)
		assert.Equal(t, []windowUsage{
			{Window: "minute", Limit: 2, Current: 2, Remaining: 0, Reset: 15},
			{Window: "hour", Limit: 100, Current: 2, Remaining: 98, Reset: 3555},
		}, body.Windows)
	}
}

func TestUsageErrors(t *testing.T) {
	h := NewUsageHandler(map[string]*ratelimit.Limiter{
		"orders": newLimiter(t, failingStore{}, map[ratelimit.Window]int32{ratelimit.Second: 1}),
	})
	r := usageRouter(h)

	assert.Equal(t, http.StatusNotFound, get(r, "/admin/usage/billing?identity=x").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/admin/usage/orders").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/admin/usage/orders?identity=x").Code)
}

func TestSystemHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cb := circuitbreaker.New(circuitbreaker.Config{Name: "redis", MaxFailures: 1})
	_ = cb.Call(func() error { return errors.New("down") })
	require.Equal(t, circuitbreaker.StateOpen, cb.State())

	h := NewSystemHandler(cb)
	r := gin.New()
	r.GET("/admin/breaker", h.CircuitBreakerStatus)
	r.POST("/admin/breaker/reset", h.ResetCircuitBreaker)

	w := get(r, "/admin/breaker")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"open"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/breaker/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())

	disabled := gin.New()
	disabled.GET("/admin/breaker", NewSystemHandler(nil).CircuitBreakerStatus)
	assert.JSONEq(t, `{"enabled": false}`, get(disabled, "/admin/breaker").Body.String())
}
