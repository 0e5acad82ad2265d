package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())

	m.JobProcessed("published")
	m.JobProcessed("published")
	m.JobProcessed("failed")
	m.JobEnqueued(true)
	m.BackendCall("geoserver", nil, 10*time.Millisecond)
	m.BackendCall("geoserver", errors.New("boom"), time.Second)
	m.BreakerOpen("ch-1", true)
	m.LifecycleOutcome("lock", "")
	m.RefreshRun("submitted")

	assert.InDelta(t, 2, testutil.ToFloat64(m.JobsProcessedTotal.WithLabelValues("published")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsProcessedTotal.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsEnqueuedTotal.WithLabelValues("symbology")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BackendCallsTotal.WithLabelValues("geoserver", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CircuitBreakerOpenGauge.WithLabelValues("ch-1")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LifecycleOutcomesTotal.WithLabelValues("lock", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RefreshRunsTotal.WithLabelValues("submitted")), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	m.JobProcessed("published")
	m.BackendCall("archive", nil, time.Second)
	m.BreakerOpen("ch-1", false)
	m.LifecycleOutcome("lock", "hash_mismatch")
	m.RefreshRun("fetch_failed")
}
