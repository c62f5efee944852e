// Package metrics provides Prometheus metrics for the jitter caffeine engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the jitter service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Core Business Metrics - engine invocations
	riskScoresComputed  prometheus.Counter
	focusScoresComputed prometheus.Counter
	plansGenerated      prometheus.Counter
	plansDegraded       prometheus.Counter
	recommendations     prometheus.Counter
	invalidInput        prometheus.Counter

	// Curve Metrics - multi-sample projections
	curveSamples       prometheus.Counter
	curveSampleCarries prometheus.Counter

	// Latency Metrics
	riskLatency  prometheus.Histogram
	planLatency  prometheus.Histogram
	curveLatency prometheus.Histogram

	// Operational Health Metrics
	trackedUsers prometheus.Gauge
	dosesLogged  prometheus.Counter

	// Refresh Pipeline Metrics - async plan recomputation
	refreshQueueDepth    prometheus.Gauge
	refreshJobsEnqueued  prometheus.Counter
	refreshJobsCoalesced prometheus.Counter
	refreshJobsProcessed prometheus.Counter
	refreshJobErrors     prometheus.Counter
	refreshWorkers       prometheus.Gauge
	refreshJobLatency    prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "jitter",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.riskScoresComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "risk_scores_computed_total",
		Help:      "Total number of crash-risk scores computed",
	})

	m.focusScoresComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "focus_scores_computed_total",
		Help:      "Total number of focus (CaffScore) scores computed",
	})

	m.plansGenerated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "plans_generated_total",
		Help:      "Total number of caffeine plans generated",
	})

	m.plansDegraded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "plans_degraded_total",
		Help:      "Total number of plans emitted with reduced confidence or warnings",
	})

	m.recommendations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dose_recommendations_total",
		Help:      "Total number of dose recommendations emitted",
	})

	m.invalidInput = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "invalid_input_total",
		Help:      "Total number of requests rejected by input sanity checks",
	})

	m.curveSamples = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "curve_samples_total",
		Help:      "Total number of projection curve samples computed",
	})

	m.curveSampleCarries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "curve_sample_carries_total",
		Help:      "Total number of curve samples recovered by carrying forward the prior value",
	})

	m.riskLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "risk_latency_milliseconds",
		Help:      "Histogram of risk score computation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.planLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "plan_latency_milliseconds",
		Help:      "Histogram of plan generation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.curveLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "curve_latency_milliseconds",
		Help:      "Histogram of full-curve generation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.trackedUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_users",
		Help:      "Number of users with state in the day store",
	})

	m.dosesLogged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "doses_logged_total",
		Help:      "Total number of dose events logged",
	})

	m.refreshQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_queue_depth",
		Help:      "Number of plan refresh jobs waiting in the queue",
	})

	m.refreshJobsEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_jobs_enqueued_total",
		Help:      "Total number of plan refresh jobs enqueued",
	})

	m.refreshJobsCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_jobs_coalesced_total",
		Help:      "Total number of refresh jobs merged into an already-pending job for the same user",
	})

	m.refreshJobsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_jobs_processed_total",
		Help:      "Total number of plan refresh jobs completed",
	})

	m.refreshJobErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_job_errors_total",
		Help:      "Total number of plan refresh jobs that failed",
	})

	m.refreshWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_workers",
		Help:      "Number of refresh worker goroutines",
	})

	m.refreshJobLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_job_latency_milliseconds",
		Help:      "Histogram of plan refresh job latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordRiskScore increments the risk scores counter.
func RecordRiskScore() {
	globalManager.riskScoresComputed.Inc()
}

// RecordFocusScore increments the focus scores counter.
func RecordFocusScore() {
	globalManager.focusScoresComputed.Inc()
}

// RecordPlanGenerated increments the plans generated counter.
func RecordPlanGenerated() {
	globalManager.plansGenerated.Inc()
}

// RecordPlanDegraded increments the degraded plans counter.
func RecordPlanDegraded() {
	globalManager.plansDegraded.Inc()
}

// RecordRecommendations adds emitted recommendation count.
func RecordRecommendations(n int) {
	globalManager.recommendations.Add(float64(n))
}

// RecordInvalidInput increments the invalid input counter.
func RecordInvalidInput() {
	globalManager.invalidInput.Inc()
}

// RecordCurveSamples adds computed curve sample count.
func RecordCurveSamples(n int) {
	globalManager.curveSamples.Add(float64(n))
}

// RecordCurveSampleCarry increments the carried-forward sample counter.
func RecordCurveSampleCarry() {
	globalManager.curveSampleCarries.Inc()
}

// RecordRiskLatency records risk computation latency in milliseconds.
func RecordRiskLatency(latencyMs float64) {
	globalManager.riskLatency.Observe(latencyMs)
}

// RecordPlanLatency records plan generation latency in milliseconds.
func RecordPlanLatency(latencyMs float64) {
	globalManager.planLatency.Observe(latencyMs)
}

// RecordCurveLatency records full-curve generation latency in milliseconds.
func RecordCurveLatency(latencyMs float64) {
	globalManager.curveLatency.Observe(latencyMs)
}

// UpdateTrackedUsers sets the number of tracked users.
func UpdateTrackedUsers(count int) {
	globalManager.trackedUsers.Set(float64(count))
}

// RecordDoseLogged increments the doses logged counter.
func RecordDoseLogged() {
	globalManager.dosesLogged.Inc()
}

// UpdateRefreshQueueDepth sets the refresh queue depth.
func UpdateRefreshQueueDepth(n int) {
	globalManager.refreshQueueDepth.Set(float64(n))
}

// RecordRefreshEnqueued increments the enqueued refresh jobs counter.
func RecordRefreshEnqueued() {
	globalManager.refreshJobsEnqueued.Inc()
}

// RecordRefreshCoalesced increments the coalesced refresh jobs counter.
func RecordRefreshCoalesced() {
	globalManager.refreshJobsCoalesced.Inc()
}

// RecordRefreshProcessed increments the processed refresh jobs counter.
func RecordRefreshProcessed() {
	globalManager.refreshJobsProcessed.Inc()
}

// RecordRefreshError increments the failed refresh jobs counter.
func RecordRefreshError() {
	globalManager.refreshJobErrors.Inc()
}

// UpdateRefreshWorkers sets the number of refresh workers.
func UpdateRefreshWorkers(n int) {
	globalManager.refreshWorkers.Set(float64(n))
}

// RecordRefreshJobLatency records refresh job latency in milliseconds.
func RecordRefreshJobLatency(latencyMs float64) {
	globalManager.refreshJobLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

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
