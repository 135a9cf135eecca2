// Package metrics wraps the prometheus counters, histograms, and gauges
// this module exposes: per-tree put/get throughput and latency, PALM
// batch throughput and per-stage latency, submission queue depth, and
// optimistic-read retry counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds every prometheus collector this module registers.
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	treeOperationsTotal   *prometheus.CounterVec
	treeOperationDuration *prometheus.HistogramVec
	treeRetriesTotal      *prometheus.CounterVec

	batchesTotal    prometheus.Counter
	batchOpsTotal   prometheus.Counter
	batchDuration   prometheus.Histogram
	stageDuration   *prometheus.HistogramVec
	queueDepth      prometheus.Gauge

	healthChecksTotal *prometheus.CounterVec
}

// New creates and registers every collector against reg. Passing nil
// registers against prometheus's global default registerer, the shape a
// server process wants; tests should pass a fresh prometheus.NewRegistry()
// so repeated calls in the same process don't collide on metric names.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "latchtree_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "latchtree_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "latchtree_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		treeOperationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "latchtree_tree_operations_total",
				Help: "Total number of index put/get operations",
			},
			[]string{"index", "kind", "operation", "status"},
		),
		treeOperationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "latchtree_tree_operation_duration_seconds",
				Help:    "Index put/get duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"index", "kind", "operation"},
		),
		treeRetriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "latchtree_tree_retries_total",
				Help: "Total number of optimistic-read restarts",
			},
			[]string{"index", "kind"},
		),

		batchesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "latchtree_palm_batches_total",
				Help: "Total number of PALM batches executed",
			},
		),
		batchOpsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "latchtree_palm_batch_ops_total",
				Help: "Total number of operations across all PALM batches",
			},
		),
		batchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "latchtree_palm_batch_duration_seconds",
				Help:    "PALM batch end-to-end duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		stageDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "latchtree_palm_stage_duration_seconds",
				Help:    "PALM per-stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "latchtree_submission_queue_depth",
				Help: "Current number of batches waiting in the submission buffer",
			},
		),

		healthChecksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "latchtree_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}
}

// RecordHTTPRequest records one HTTP request's outcome and duration.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, http.StatusText(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordTreeOp records one index put/get and its duration.
func (m *Metrics) RecordTreeOp(index, kind, operation string, success bool, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.treeOperationsTotal.WithLabelValues(index, kind, operation, status).Inc()
	m.treeOperationDuration.WithLabelValues(index, kind, operation).Observe(duration.Seconds())
}

// RecordRetry records one optimistic-read restart.
func (m *Metrics) RecordRetry(index, kind string) {
	m.treeRetriesTotal.WithLabelValues(index, kind).Inc()
}

// RecordBatch records one completed PALM batch.
func (m *Metrics) RecordBatch(opCount int, duration time.Duration) {
	m.batchesTotal.Inc()
	m.batchOpsTotal.Add(float64(opCount))
	m.batchDuration.Observe(duration.Seconds())
}

// RecordStage records one PALM stage's duration (descend, sync,
// redistribute, leaves, branches, root).
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// SetQueueDepth reports the submission buffer's current occupancy.
func (m *Metrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// RecordHealthCheck records one health check outcome.
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler wraps handler with request-count/duration/in-flight
// instrumentation.
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
