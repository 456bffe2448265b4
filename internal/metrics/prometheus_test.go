package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"github.com/aman-churiwal/quotagate/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (int32, ratelimit.Version, error) {
	return 0, ratelimit.NoVersion, errors.New("connection reset")
}

func (brokenStore) CompareAndSwap(context.Context, string, int32, ratelimit.Version, time.Duration) error {
	return errors.New("connection reset")
}

func TestPrometheusRecordsLimiterOutcomes(t *testing.T) {
	rec := NewPrometheus()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(rec))

	limits := ratelimit.NewLimits()
	limits[ratelimit.Minute] = 1
	limiter, err := ratelimit.New(storage.NewMemoryCounterStore(), ratelimit.Policy{Limits: limits}, ratelimit.WithRecorder(rec))
	require.NoError(t, err)

	id := ratelimit.Identity{Scope: "orders", Value: "10.0.0.1"}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := limiter.Admit(context.Background(), id, now)
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.decisions.WithLabelValues("orders", "allowed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.decisions.WithLabelValues("orders", "blocked")))
}

func TestPrometheusRecordsFaults(t *testing.T) {
	rec := NewPrometheus()

	limits := ratelimit.NewLimits()
	limits[ratelimit.Second] = 5
	tolerant, err := ratelimit.New(brokenStore{}, ratelimit.Policy{Limits: limits, FaultTolerant: true}, ratelimit.WithRecorder(rec))
	require.NoError(t, err)
	strict, err := ratelimit.New(brokenStore{}, ratelimit.Policy{Limits: limits}, ratelimit.WithRecorder(rec))
	require.NoError(t, err)

	_, err = tolerant.Admit(context.Background(), ratelimit.Identity{Scope: "open", Value: "a"}, time.Now())
	require.NoError(t, err)
	_, err = strict.Admit(context.Background(), ratelimit.Identity{Scope: "closed", Value: "a"}, time.Now())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.decisions.WithLabelValues("open", "fault_open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.decisions.WithLabelValues("closed", "fault_closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.storeFaults.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.storeFaults.WithLabelValues("closed")))
}

func TestPrometheusIncrementFailures(t *testing.T) {
	rec := NewPrometheus()
	rec.IncrementFailed("orders", ratelimit.Hour)
	rec.IncrementFailed("orders", ratelimit.Hour)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.incrementFailures.WithLabelValues("orders", "hour")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec))
}
