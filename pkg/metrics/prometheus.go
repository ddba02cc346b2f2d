// Package metrics provides Prometheus metrics for the recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	latencyBuckets   []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Karma formula pipeline
	formulaStageDuration *prometheus.HistogramVec
	formulaStageErrors   *prometheus.CounterVec
	karmaCalculations    *prometheus.CounterVec

	// Formula data provider
	providerFetchDuration *prometheus.HistogramVec
	providerFetchErrors   *prometheus.CounterVec
	providerBreakerState  *prometheus.GaugeVec
	karmaPublishes        *prometheus.CounterVec

	// Model cache
	modelRebuilds        *prometheus.CounterVec
	modelRebuildErrors   prometheus.Counter
	modelRebuildDuration prometheus.Histogram
	modelLastBuildUnix   prometheus.Gauge
	modelTrainingRatings prometheus.Gauge
	modelCacheHits       prometheus.Counter
	ratingsAdjusted      *prometheus.CounterVec

	// Recommendation engine
	recommendationRequests   *prometheus.CounterVec
	recommendationLatency    prometheus.Histogram
	recommendationCandidates prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Refresh queue
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	refreshDuplicates  prometheus.Counter

	// Refresh workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerJobsTotal         *prometheus.CounterVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "recsvc",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		latencyBuckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.formulaStageDuration = auto.NewHistogramVec(
		m.histogramOpts("formula_stage_duration_milliseconds", "Duration of a single karma formula stage calculation", m.histogramBuckets),
		[]string{"stage"},
	)
	m.formulaStageErrors = auto.NewCounterVec(
		m.counterOpts("formula_stage_errors_total", "Formula stages that produced an invalid result or rejected their input"),
		[]string{"stage", "kind"},
	)
	m.karmaCalculations = auto.NewCounterVec(
		m.counterOpts("karma_calculations_total", "Per-user karma orchestrations by outcome"),
		[]string{"outcome"},
	)

	m.providerFetchDuration = auto.NewHistogramVec(
		m.histogramOpts("provider_fetch_duration_milliseconds", "Latency of formula data provider fetches", m.latencyBuckets),
		[]string{"stage"},
	)
	m.providerFetchErrors = auto.NewCounterVec(
		m.counterOpts("provider_fetch_errors_total", "Failed formula data provider fetches"),
		[]string{"stage", "reason"},
	)
	m.providerBreakerState = auto.NewGaugeVec(
		m.gaugeOpts("provider_breaker_state", "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)"),
		[]string{"breaker"},
	)
	m.karmaPublishes = auto.NewCounterVec(
		m.counterOpts("karma_publishes_total", "Karma results pushed to the update-info endpoint"),
		[]string{"outcome"},
	)

	m.modelRebuilds = auto.NewCounterVec(
		m.counterOpts("model_rebuilds_total", "Rating model rebuilds by algorithm"),
		[]string{"algorithm"},
	)
	m.modelRebuildErrors = auto.NewCounter(m.counterOpts("model_rebuild_errors_total", "Failed rating model rebuilds"))
	m.modelRebuildDuration = auto.NewHistogram(
		m.histogramOpts("model_rebuild_duration_milliseconds", "Time spent loading ratings and fitting a model", m.latencyBuckets),
	)
	m.modelLastBuildUnix = auto.NewGauge(m.gaugeOpts("model_last_build_unix", "Unix timestamp of the last successful model build"))
	m.modelTrainingRatings = auto.NewGauge(m.gaugeOpts("model_training_ratings", "Number of ratings in the last training snapshot"))
	m.modelCacheHits = auto.NewCounter(m.counterOpts("model_cache_hits_total", "EnsureFresh calls served by the cached model"))
	m.ratingsAdjusted = auto.NewCounterVec(
		m.counterOpts("training_ratings_adjusted_total", "Training rows clipped onto the rating scale or skipped as non-finite"),
		[]string{"action"},
	)

	m.recommendationRequests = auto.NewCounterVec(
		m.counterOpts("recommendation_requests_total", "Recommendation requests by algorithm and outcome"),
		[]string{"algorithm", "outcome"},
	)
	m.recommendationLatency = auto.NewHistogram(
		m.histogramOpts("recommendation_latency_milliseconds", "End-to-end recommendation latency", m.latencyBuckets),
	)
	m.recommendationCandidates = auto.NewHistogram(
		m.histogramOpts("recommendation_candidates", "Candidate items scored per request",
			prometheus.ExponentialBuckets(1, 4, 10)),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.latencyBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("refresh_queue_capacity", "Maximum refresh queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("refresh_queue_size", "Current number of queued refresh jobs"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("refresh_queue_utilization_ratio", "Refresh queue utilization (size / capacity)"))
	m.queueEnqueueTotal = auto.NewCounter(m.counterOpts("refresh_queue_enqueue_total", "Refresh jobs enqueued"))
	m.queueDequeueTotal = auto.NewCounter(m.counterOpts("refresh_queue_dequeue_total", "Refresh jobs handed to workers"))
	m.queueEnqueueErrors = auto.NewCounterVec(
		m.counterOpts("refresh_queue_enqueue_errors_total", "Rejected refresh jobs by reason"),
		[]string{"reason"},
	)
	m.refreshDuplicates = auto.NewCounter(m.counterOpts("refresh_duplicates_total", "Refresh requests skipped because the user was already in flight"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("refresh_worker_count", "Number of refresh workers"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("refresh_worker_latency_milliseconds", "Time to recalculate and publish one user's karma", m.latencyBuckets),
	)
	m.workerJobsTotal = auto.NewCounterVec(
		m.counterOpts("refresh_jobs_total", "Refresh jobs processed by outcome"),
		[]string{"outcome"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors", m.latencyBuckets),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// Formula pipeline.

// RecordStageDuration records how long a formula stage took.
func RecordStageDuration(stage string, ms float64) {
	globalManager.formulaStageDuration.WithLabelValues(stage).Observe(ms)
}

// RecordStageError counts a failed formula stage.
func RecordStageError(stage, kind string) {
	globalManager.formulaStageErrors.WithLabelValues(stage, kind).Inc()
}

// RecordKarmaCalculation counts a finished orchestration ("ok" or "error").
func RecordKarmaCalculation(outcome string) {
	globalManager.karmaCalculations.WithLabelValues(outcome).Inc()
}

// Formula data provider.

// RecordProviderFetch records the latency of one provider fetch.
func RecordProviderFetch(stage string, ms float64) {
	globalManager.providerFetchDuration.WithLabelValues(stage).Observe(ms)
}

// RecordProviderFetchError counts a failed provider fetch.
func RecordProviderFetchError(stage, reason string) {
	globalManager.providerFetchErrors.WithLabelValues(stage, reason).Inc()
}

// UpdateBreakerState publishes a breaker state as 0 (closed), 1 (half-open) or 2 (open).
func UpdateBreakerState(name string, state int) {
	globalManager.providerBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordKarmaPublish counts a push to the update-info endpoint.
func RecordKarmaPublish(outcome string) {
	globalManager.karmaPublishes.WithLabelValues(outcome).Inc()
}

// Model cache.

// RecordModelRebuild records a successful rebuild.
func RecordModelRebuild(algorithm string, ms float64, ratings int, builtAtUnix int64) {
	globalManager.modelRebuilds.WithLabelValues(algorithm).Inc()
	globalManager.modelRebuildDuration.Observe(ms)
	globalManager.modelTrainingRatings.Set(float64(ratings))
	globalManager.modelLastBuildUnix.Set(float64(builtAtUnix))
}

// RecordModelRebuildError counts a failed rebuild.
func RecordModelRebuildError() {
	globalManager.modelRebuildErrors.Inc()
}

// RecordRatingsAdjusted counts training rows that were clipped or skipped.
func RecordRatingsAdjusted(action string, n int) {
	if n > 0 {
		globalManager.ratingsAdjusted.WithLabelValues(action).Add(float64(n))
	}
}

// RecordModelCacheHit counts an EnsureFresh served from cache.
func RecordModelCacheHit() {
	globalManager.modelCacheHits.Inc()
}

// Recommendation engine.

// RecordRecommendation records one recommendation request.
func RecordRecommendation(algorithm, outcome string, ms float64) {
	globalManager.recommendationRequests.WithLabelValues(algorithm, outcome).Inc()
	globalManager.recommendationLatency.Observe(ms)
}

// RecordCandidates records the size of a candidate set.
func RecordCandidates(n int) {
	globalManager.recommendationCandidates.Observe(float64(n))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Refresh queue.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size and derived utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordRefreshDuplicate counts a refresh skipped because one is in flight.
func RecordRefreshDuplicate() {
	globalManager.refreshDuplicates.Inc()
}

// Refresh workers.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerJob records one processed refresh job.
func RecordWorkerJob(outcome string, ms float64) {
	globalManager.workerJobsTotal.WithLabelValues(outcome).Inc()
	globalManager.workerProcessingLatency.Observe(ms)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
