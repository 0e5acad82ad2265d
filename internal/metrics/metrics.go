// Package metrics holds the Prometheus collectors of the curator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "curator"

// Metrics holds all curator collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Publish metrics
	JobsProcessedTotal      *prometheus.CounterVec
	BackendCallsTotal       *prometheus.CounterVec
	BackendCallDuration     *prometheus.HistogramVec
	JobsEnqueuedTotal       *prometheus.CounterVec
	CircuitBreakerOpenGauge *prometheus.GaugeVec

	// Lifecycle and refresh metrics
	LifecycleOutcomesTotal *prometheus.CounterVec
	RefreshRunsTotal       *prometheus.CounterVec
}

// New creates and registers the collectors on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{}

	m.JobsProcessedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "jobs_processed_total",
		Help:      "Publish jobs that reached a terminal status",
	}, []string{"status"})

	m.JobsEnqueuedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "jobs_enqueued_total",
		Help:      "Publish jobs inserted, by kind",
	}, []string{"kind"})

	m.BackendCallsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "backend_calls_total",
		Help:      "Backend publish calls by backend and result",
	}, []string{"backend", "result"})

	m.BackendCallDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "backend_call_duration_seconds",
		Help:      "Duration of backend publish calls",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	}, []string{"backend"})

	m.CircuitBreakerOpenGauge = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "circuit_breaker_open",
		Help:      "1 while a channel's circuit breaker is open or half-open",
	}, []string{"channel_id"})

	m.LifecycleOutcomesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "outcomes_total",
		Help:      "Lifecycle operations by operation and refusal reason",
	}, []string{"operation", "reason"})

	m.RefreshRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refresh",
		Name:      "runs_total",
		Help:      "Refresh attempts by result",
	}, []string{"result"})

	return m
}

// JobProcessed counts a job that reached status.
func (m *Metrics) JobProcessed(status string) {
	if m == nil {
		return
	}
	m.JobsProcessedTotal.WithLabelValues(status).Inc()
}

// JobEnqueued counts an inserted job.
func (m *Metrics) JobEnqueued(symbologyOnly bool) {
	if m == nil {
		return
	}
	kind := "full"
	if symbologyOnly {
		kind = "symbology"
	}
	m.JobsEnqueuedTotal.WithLabelValues(kind).Inc()
}

// BackendCall records one backend call.
func (m *Metrics) BackendCall(backend string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.BackendCallsTotal.WithLabelValues(backend, result).Inc()
	m.BackendCallDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// BreakerOpen sets whether a channel's breaker is letting calls through.
func (m *Metrics) BreakerOpen(channelID string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitBreakerOpenGauge.WithLabelValues(channelID).Set(v)
}

// LifecycleOutcome counts a lifecycle operation. An empty reason means it succeeded.
func (m *Metrics) LifecycleOutcome(operation, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "ok"
	}
	m.LifecycleOutcomesTotal.WithLabelValues(operation, reason).Inc()
}

// RefreshRun counts one refresh attempt.
func (m *Metrics) RefreshRun(result string) {
	if m == nil {
		return
	}
	m.RefreshRunsTotal.WithLabelValues(result).Inc()
}
