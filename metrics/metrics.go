// Package metrics exposes the engine's operational counters in Prometheus
// format.
//
// The Collector satisfies replicatypes.MetricsRecorder, so wiring it into
// the engine is one option away. Each Collector owns its own registry;
// creating several engines in one process never trips double-registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// Result labels for the jobs_finished counter, mirroring the values the
// engine reports.
const (
	// ResultCommitted marks a job that reached quorum everywhere it tried
	ResultCommitted = replicatypes.JobCommitted

	// ResultDegraded marks a quorum success with at least one failed backend
	ResultDegraded = replicatypes.JobDegraded

	// ResultFailed marks a job that missed quorum
	ResultFailed = replicatypes.JobFailed
)

// Collector gathers transfer engine metrics for Prometheus.
type Collector struct {
	registry *prometheus.Registry

	jobsActive      prometheus.Gauge
	jobsFinished    *prometheus.CounterVec
	jobDuration     prometheus.Histogram
	bytesUploaded   prometheus.Counter
	bytesDownloaded prometheus.Counter
	backendFailures *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered on a
// private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "replica_jobs_active",
			Help: "Current number of running transfer jobs",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replica_jobs_finished_total",
			Help: "Total number of finished transfer jobs by result",
		}, []string{"result"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "replica_job_duration_seconds",
			Help:    "Transfer job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		bytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replica_bytes_uploaded_total",
			Help: "Total bytes committed to backends",
		}),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replica_bytes_downloaded_total",
			Help: "Total bytes restored from backends",
		}),
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replica_backend_failures_total",
			Help: "Total failed backend pipelines by backend name",
		}, []string{"backend"}),
	}

	c.registry.MustRegister(
		c.jobsActive,
		c.jobsFinished,
		c.jobDuration,
		c.bytesUploaded,
		c.bytesDownloaded,
		c.backendFailures,
	)

	return c
}

// JobStarted marks one more job as active.
func (c *Collector) JobStarted() {
	c.jobsActive.Inc()
}

// JobFinished records a finished job under its result label.
func (c *Collector) JobFinished(result string, duration time.Duration) {
	c.jobsActive.Dec()
	c.jobsFinished.WithLabelValues(result).Inc()
	c.jobDuration.Observe(duration.Seconds())
}

// BytesUploaded adds to the uploaded byte counter.
func (c *Collector) BytesUploaded(n int64) {
	if n > 0 {
		c.bytesUploaded.Add(float64(n))
	}
}

// BytesDownloaded adds to the downloaded byte counter.
func (c *Collector) BytesDownloaded(n int64) {
	if n > 0 {
		c.bytesDownloaded.Add(float64(n))
	}
}

// BackendFailure counts one failed backend pipeline.
func (c *Collector) BackendFailure(backend string) {
	c.backendFailures.WithLabelValues(backend).Inc()
}

// Handler returns an http.Handler serving this collector's metrics in
// Prometheus text format, ready to mount on a /metrics route.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for callers that combine the
// engine's metrics with their own.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Verify that Collector implements the MetricsRecorder interface
var _ replicatypes.MetricsRecorder = (*Collector)(nil)
