package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricValue gathers the collector's registry and returns the sample for
// the named family whose labels match. Missing families or label sets
// report zero.
func metricValue(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := c.registry.Gather()
	require.NoError(t, err, "gathering the registry should succeed")

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metric:
		for _, m := range family.GetMetric() {
			for k, v := range labels {
				if !hasLabel(m, k, v) {
					continue metric
				}
			}
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				return m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				return m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				return float64(m.GetHistogram().GetSampleCount())
			default:
				t.Fatalf("unhandled metric type %v for %s", family.GetType(), name)
			}
		}
	}

	return 0
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, pair := range m.GetLabel() {
		if pair.GetName() == key && pair.GetValue() == value {
			return true
		}
	}

	return false
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	require.NotNil(t, collector)
	assert.NotNil(t, collector.registry, "collector should own a registry")

	families, err := collector.registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}

	// Vectors do not appear in Gather output until their first label set
	// is touched, so only the plain metrics are visible up front.
	for _, want := range []string{
		"replica_jobs_active",
		"replica_job_duration_seconds",
		"replica_bytes_uploaded_total",
		"replica_bytes_downloaded_total",
	} {
		assert.True(t, names[want], "expected %s to be registered", want)
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	// Two collectors in one process must not clash over registration.
	first := NewCollector()
	second := NewCollector()

	first.JobStarted()
	first.JobStarted()
	second.JobStarted()

	assert.InDelta(t, 2.0, metricValue(t, first, "replica_jobs_active", nil), 0.001)
	assert.InDelta(t, 1.0, metricValue(t, second, "replica_jobs_active", nil), 0.001)
}

func TestJobLifecycle(t *testing.T) {
	collector := NewCollector()

	collector.JobStarted()
	collector.JobStarted()
	collector.JobStarted()

	assert.InDelta(t, 3.0, metricValue(t, collector, "replica_jobs_active", nil), 0.001)

	collector.JobFinished(ResultCommitted, 250*time.Millisecond)
	collector.JobFinished(ResultDegraded, 500*time.Millisecond)
	collector.JobFinished(ResultFailed, time.Second)

	assert.InDelta(t, 0.0, metricValue(t, collector, "replica_jobs_active", nil), 0.001)
	assert.InDelta(t, 1.0,
		metricValue(t, collector, "replica_jobs_finished_total", map[string]string{"result": ResultCommitted}), 0.001)
	assert.InDelta(t, 1.0,
		metricValue(t, collector, "replica_jobs_finished_total", map[string]string{"result": ResultDegraded}), 0.001)
	assert.InDelta(t, 1.0,
		metricValue(t, collector, "replica_jobs_finished_total", map[string]string{"result": ResultFailed}), 0.001)

	// Three observations landed in the duration histogram.
	assert.InDelta(t, 3.0, metricValue(t, collector, "replica_job_duration_seconds", nil), 0.001)
}

func TestByteCounters(t *testing.T) {
	collector := NewCollector()

	collector.BytesUploaded(1024)
	collector.BytesUploaded(2048)
	collector.BytesDownloaded(512)

	// Non-positive deltas are dropped rather than panicking the counter.
	collector.BytesUploaded(0)
	collector.BytesUploaded(-100)
	collector.BytesDownloaded(-1)

	assert.InDelta(t, 3072.0, metricValue(t, collector, "replica_bytes_uploaded_total", nil), 0.001)
	assert.InDelta(t, 512.0, metricValue(t, collector, "replica_bytes_downloaded_total", nil), 0.001)
}

func TestBackendFailures(t *testing.T) {
	collector := NewCollector()

	collector.BackendFailure("wasabi-eu")
	collector.BackendFailure("wasabi-eu")
	collector.BackendFailure("minio-local")

	assert.InDelta(t, 2.0,
		metricValue(t, collector, "replica_backend_failures_total", map[string]string{"backend": "wasabi-eu"}), 0.001)
	assert.InDelta(t, 1.0,
		metricValue(t, collector, "replica_backend_failures_total", map[string]string{"backend": "minio-local"}), 0.001)
}

func TestHandlerServesTextFormat(t *testing.T) {
	collector := NewCollector()
	collector.JobStarted()
	collector.JobFinished(ResultCommitted, 100*time.Millisecond)
	collector.BytesUploaded(4096)
	collector.BackendFailure("wasabi-eu")

	server := httptest.NewServer(collector.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "replica_jobs_finished_total{result=\"committed\"} 1")
	assert.Contains(t, text, "replica_bytes_uploaded_total 4096")
	assert.Contains(t, text, "replica_backend_failures_total{backend=\"wasabi-eu\"} 1")
}

func TestConcurrentUpdates(t *testing.T) {
	collector := NewCollector()

	done := make(chan struct{}, 50)
	for i := 0; i < 50; i++ {
		go func() {
			collector.JobStarted()
			collector.BytesUploaded(10)
			collector.BackendFailure("wasabi-eu")
			collector.JobFinished(ResultCommitted, 10*time.Millisecond)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}

	assert.InDelta(t, 0.0, metricValue(t, collector, "replica_jobs_active", nil), 0.001)
	assert.InDelta(t, 500.0, metricValue(t, collector, "replica_bytes_uploaded_total", nil), 0.001)
	assert.InDelta(t, 50.0,
		metricValue(t, collector, "replica_jobs_finished_total", map[string]string{"result": ResultCommitted}), 0.001)
}
