package metrics

import (
	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus records limiter outcomes. It implements both ratelimit.Recorder
// and prometheus.Collector.
type Prometheus struct {
	decisions         *prometheus.CounterVec
	storeFaults       *prometheus.CounterVec
	incrementFailures *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	return &Prometheus{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotagate_ratelimit_decisions_total",
			Help: "Rate limit decisions by service and outcome",
		}, []string{"service", "outcome"}),
		storeFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotagate_ratelimit_store_faults_total",
			Help: "Counter reads that failed while evaluating a request",
		}, []string{"service"}),
		incrementFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotagate_ratelimit_increment_failures_total",
			Help: "Counter increments abandoned after exhausting their attempts",
		}, []string{"service", "window"}),
	}
}

func (p *Prometheus) Decision(scope string, outcome ratelimit.Outcome) {
	p.decisions.WithLabelValues(scope, string(outcome)).Inc()
}

func (p *Prometheus) StoreFault(scope string) {
	p.storeFaults.WithLabelValues(scope).Inc()
}

func (p *Prometheus) IncrementFailed(scope string, w ratelimit.Window) {
	p.incrementFailures.WithLabelValues(scope, w.String()).Inc()
}

func (p *Prometheus) Describe(ch chan<- *prometheus.Desc) {
	p.decisions.Describe(ch)
	p.storeFaults.Describe(ch)
	p.incrementFailures.Describe(ch)
}

func (p *Prometheus) Collect(ch chan<- prometheus.Metric) {
	p.decisions.Collect(ch)
	p.storeFaults.Collect(ch)
	p.incrementFailures.Collect(ch)
}
