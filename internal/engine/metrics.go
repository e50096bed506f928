package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pulsewatch/pulsewatch/internal/checker"
)

// Metrics tracks process-wide check counters. Counters reset on process
// start; the running average latency is an incremental mean, not a
// window.
type Metrics struct {
	mu         sync.Mutex
	total      int64
	success    int64
	failed     int64
	avgLatency float64

	checksTotal  *prometheus.CounterVec
	checkLatency prometheus.Histogram
}

// NewMetrics creates the metrics aggregator and registers its Prometheus
// collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_checks_total",
				Help: "Total number of checks executed, by result.",
			},
			[]string{"result"},
		),
		checkLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pulsewatch_check_latency_seconds",
				Help:    "Latency of executed checks in seconds.",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
	}
}

// Record folds one check attempt into the counters. It is safe for
// concurrent use by chunk workers.
func (m *Metrics) Record(outcome checker.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if outcome.Success {
		m.success++
		m.checksTotal.WithLabelValues("success").Inc()
	} else {
		m.failed++
		m.checksTotal.WithLabelValues("error").Inc()
	}

	m.avgLatency += (float64(outcome.LatencyMs) - m.avgLatency) / float64(m.total)
	m.checkLatency.Observe(float64(outcome.LatencyMs) / 1000)
}

// Snapshot is the read-only metrics view served to dashboards and
// health endpoints.
type Snapshot struct {
	TotalChecks   int64   `json:"total_checks"`
	SuccessChecks int64   `json:"success_checks"`
	FailedChecks  int64   `json:"failed_checks"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	ActiveJobs    int     `json:"active_jobs"`
	Running       bool    `json:"running"`
}

// Snapshot returns the current counters. ActiveJobs and Running are
// filled in by the scheduler.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		TotalChecks:   m.total,
		SuccessChecks: m.success,
		FailedChecks:  m.failed,
		AvgLatencyMs:  m.avgLatency,
	}
}
