package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the position-fit service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring
	playersScored    prometheus.Counter
	playersFallback  prometheus.Counter
	playersDuplicate prometheus.Counter
	scoringLatency   prometheus.Histogram
	bestPosition     *prometheus.CounterVec

	// Batches
	batchRuns     *prometheus.CounterVec
	batchDuration prometheus.Histogram
	batchPlayers  prometheus.Gauge

	// Reference data
	referencePositions prometheus.Gauge
	referenceWarnings  prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount  prometheus.Gauge
	workerErrors prometheus.Counter

	// Result store
	storeRecords      prometheus.Gauge
	storeWriteLatency prometheus.Histogram
	storeQueryLatency prometheus.Histogram
	storeErrors       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "posfit",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.playersScored = m.counter("players_scored_total", "Total number of players scored")
	m.playersFallback = m.counter("players_fallback_total", "Total number of players that received the neutral fallback result")
	m.playersDuplicate = m.counter("players_duplicate_total", "Total number of duplicate player IDs skipped within a batch")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Histogram of per-player scoring latency in milliseconds")
	m.bestPosition = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "best_position_total",
		Help:      "Number of players assigned each best position",
	}, []string{"position"})

	m.batchRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_runs_total",
		Help:      "Number of batch runs by outcome",
	}, []string{"status"})
	m.batchDuration = m.histogram("batch_duration_milliseconds", "Duration of batch runs in milliseconds")
	m.batchPlayers = m.gauge("batch_players", "Number of players read by the last batch run")

	m.referencePositions = m.gauge("reference_positions", "Number of positions with usable reference data")
	m.referenceWarnings = m.counter("reference_warnings_total", "Total number of reference loading warnings")

	m.queueSize = m.gauge("queue_size", "Current number of players waiting to be scored")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the player queue")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of players enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of players dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueue attempts")

	m.workerCount = m.gauge("worker_count", "Current number of scoring workers")
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker processing errors")

	m.storeRecords = m.gauge("store_records", "Number of results held by the result store")
	m.storeWriteLatency = m.histogram("store_write_latency_milliseconds", "Result store write latency in milliseconds")
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Result store query latency in milliseconds")
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Result store errors by operation",
	}, []string{"operation"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// Scoring metrics.

// RecordPlayerScored increments the scored players counter.
func RecordPlayerScored() {
	globalManager.playersScored.Inc()
}

// RecordPlayerFallback increments the fallback counter.
func RecordPlayerFallback() {
	globalManager.playersFallback.Inc()
}

// RecordPlayerDuplicate increments the duplicate players counter.
func RecordPlayerDuplicate() {
	globalManager.playersDuplicate.Inc()
}

// RecordScoringLatency records per-player scoring latency.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordBestPosition counts a best-position assignment.
func RecordBestPosition(position string) {
	globalManager.bestPosition.WithLabelValues(position).Inc()
}

// Batch metrics.

// RecordBatchRun counts a finished batch run with status "ok" or "error".
func RecordBatchRun(status string) {
	globalManager.batchRuns.WithLabelValues(status).Inc()
}

// RecordBatchDuration records the duration of a batch run.
func RecordBatchDuration(durationMs float64) {
	globalManager.batchDuration.Observe(durationMs)
}

// UpdateBatchPlayers sets the number of players read by the last batch.
func UpdateBatchPlayers(count int) {
	globalManager.batchPlayers.Set(float64(count))
}

// Reference metrics.

// UpdateReferencePositions sets the number of usable reference positions.
func UpdateReferencePositions(count int) {
	globalManager.referencePositions.Set(float64(count))
}

// RecordReferenceWarnings adds n loading warnings.
func RecordReferenceWarnings(n int) {
	globalManager.referenceWarnings.Add(float64(n))
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker metrics.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Store metrics.

// UpdateStoreRecords sets the number of stored results.
func UpdateStoreRecords(count int) {
	globalManager.storeRecords.Set(float64(count))
}

// RecordStoreWriteLatency records result store write latency.
func RecordStoreWriteLatency(latencyMs float64) {
	globalManager.storeWriteLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records result store query latency.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
