// Package metrics provides Prometheus metrics for the activity bridge service.
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

// Manager manages all Prometheus metrics for the bridge service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Consumer Metrics - the broker-to-store-to-observers pipeline
	messagesConsumed  prometheus.Counter
	messagesMalformed prometheus.Counter
	messagesDuplicate prometheus.Counter
	consumeCycleTime  prometheus.Histogram

	// Persistence Metrics - sink health
	storeInserts       prometheus.Counter
	storeInsertErrors  prometheus.Counter
	storeInsertRetries prometheus.Counter
	storeInsertLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram
	storeQueryErrors   prometheus.Counter

	// Fan-out Metrics - observer registry health
	observersConnected  prometheus.Gauge
	broadcastsTotal     prometheus.Counter
	broadcastDeliveries prometheus.Counter
	observerSendDrops   prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
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

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "bridge",
		subsystem:        "activity",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Consumer Metrics - pipeline throughput and quality
	m.messagesConsumed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "messages_consumed_total",
		Help:      "Total number of broker messages fully processed (persisted and broadcast)",
	})

	m.messagesMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "messages_malformed_total",
		Help:      "Total number of broker messages skipped as unparseable",
	})

	m.messagesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "messages_duplicate_total",
		Help:      "Total number of redelivered messages suppressed by the duplicate guard",
	})

	m.consumeCycleTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "consume_cycle_milliseconds",
		Help:      "Time from message decode through broadcast in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Persistence Metrics
	m.storeInserts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_inserts_total",
		Help:      "Total number of activity rows written to the store",
	})

	m.storeInsertErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_insert_errors_total",
		Help:      "Total number of failed store writes (after retries)",
	})

	m.storeInsertRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_insert_retries_total",
		Help:      "Total number of store write attempts retried with backoff",
	})

	m.storeInsertLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_insert_latency_milliseconds",
		Help:      "Store write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Recent-history query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_errors_total",
		Help:      "Total number of failed recent-history queries",
	})

	// Fan-out Metrics
	m.observersConnected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observers_connected",
		Help:      "Current number of connected live observers",
	})

	m.broadcastsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcasts_total",
		Help:      "Total number of broadcast passes executed",
	})

	m.broadcastDeliveries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_deliveries_total",
		Help:      "Total number of per-observer deliveries queued",
	})

	m.observerSendDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observer_send_drops_total",
		Help:      "Total number of observers dropped for failed or stalled sends",
	})

	// HTTP Performance Metrics - User experience indicators
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

	// Enhanced Error Metrics - Detailed error tracking
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total errors by type and severity",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total errors by endpoint, method and error type",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of failed operations in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
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

// RecordMessageConsumed increments the consumed messages counter.
func RecordMessageConsumed() {
	globalManager.messagesConsumed.Inc()
}

// RecordMessageMalformed increments the malformed messages counter.
func RecordMessageMalformed() {
	globalManager.messagesMalformed.Inc()
}

// RecordMessageDuplicate increments the suppressed duplicates counter.
func RecordMessageDuplicate() {
	globalManager.messagesDuplicate.Inc()
}

// RecordConsumeCycleTime records one decode-to-broadcast cycle in milliseconds.
func RecordConsumeCycleTime(latencyMs float64) {
	globalManager.consumeCycleTime.Observe(latencyMs)
}

// RecordStoreInsert increments the store inserts counter.
func RecordStoreInsert() {
	globalManager.storeInserts.Inc()
}

// RecordStoreInsertError increments the store insert error counter.
func RecordStoreInsertError() {
	globalManager.storeInsertErrors.Inc()
}

// RecordStoreInsertRetry increments the store insert retry counter.
func RecordStoreInsertRetry() {
	globalManager.storeInsertRetries.Inc()
}

// RecordStoreInsertLatency records store write latency in milliseconds.
func RecordStoreInsertLatency(latencyMs float64) {
	globalManager.storeInsertLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records recent-history query latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordStoreQueryError increments the store query error counter.
func RecordStoreQueryError() {
	globalManager.storeQueryErrors.Inc()
}

// UpdateObserversConnected sets the connected observers gauge.
func UpdateObserversConnected(count int) {
	globalManager.observersConnected.Set(float64(count))
}

// RecordBroadcast increments the broadcast pass counter.
func RecordBroadcast() {
	globalManager.broadcastsTotal.Inc()
}

// RecordBroadcastDeliveries adds n to the per-observer delivery counter.
func RecordBroadcastDeliveries(n int) {
	globalManager.broadcastDeliveries.Add(float64(n))
}

// RecordObserverSendDrop increments the dropped observers counter.
func RecordObserverSendDrop() {
	globalManager.observerSendDrops.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error by endpoint, method and type.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of a failed operation in milliseconds.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
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
