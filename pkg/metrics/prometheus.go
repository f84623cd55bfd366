// Package metrics provides Prometheus metrics for the Perfect Connect matching engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the engine's Prometheus metrics on a private registry.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Engine metrics
	interestToggles   *prometheus.CounterVec
	matchesMade       *prometheus.CounterVec
	connectionsRetire prometheus.Counter
	partialApplies    prometheus.Counter
	toggleLatency     prometheus.Histogram

	// Reconciliation metrics
	reconcileRepairs *prometheus.CounterVec
	reconcileRuns    prometheus.Counter

	// Storage guard metrics
	breakerTransitions *prometheus.CounterVec

	// Event bus metrics
	eventsPublished *prometheus.CounterVec
	eventsFailed    *prometheus.CounterVec

	// Notification metrics
	notifications *prometheus.CounterVec

	// Scheduler metrics
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for all metrics.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry uses the given registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a metrics manager registered on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "perfect_connect",
		subsystem:        "matching",
		histogramBuckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.interestToggles = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "interest_toggles_total",
		Help:      "Interest toggles by program and outcome (liked, withdrawn, rejected, failed)",
	}, []string{"program", "outcome"})

	m.matchesMade = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_made_total",
		Help:      "Mutual interest detections by program",
	}, []string{"program"})

	m.connectionsRetire = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connections_retired_total",
		Help:      "Connections removed after the last edge between the pair was withdrawn",
	})

	m.partialApplies = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "partial_applies_total",
		Help:      "Toggles whose edge committed but whose connection write failed",
	})

	m.toggleLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "toggle_latency_milliseconds",
		Help:      "Latency of interest toggles in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.reconcileRepairs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_repairs_total",
		Help:      "Connections written or removed by reconciliation, by action",
	}, []string{"action"})

	m.reconcileRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_runs_total",
		Help:      "Completed reconciliation passes",
	})

	m.breakerTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "storage",
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker state changes by breaker and target state",
	}, []string{"breaker", "to"})

	m.eventsPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events published by type",
	}, []string{"type"})

	m.eventsFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "events",
		Name:      "handler_failures_total",
		Help:      "Event handler failures by type",
	}, []string{"type"})

	m.notifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "notifications",
		Name:      "deliveries_total",
		Help:      "Match notification deliveries by channel and result",
	}, []string{"channel", "result"})

	m.jobRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Scheduled job executions by job and result",
	}, []string{"job", "result"})

	m.jobDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Scheduled job duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// RecordToggle records a toggle outcome and its latency.
func (m *Manager) RecordToggle(program, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.interestToggles.WithLabelValues(program, outcome).Inc()
	m.toggleLatency.Observe(float64(latency) / float64(time.Millisecond))
}

// RecordMatch records a mutual interest detection.
func (m *Manager) RecordMatch(program string) {
	if m == nil {
		return
	}
	m.matchesMade.WithLabelValues(program).Inc()
}

// RecordConnectionRetired records a connection removal.
func (m *Manager) RecordConnectionRetired() {
	if m == nil {
		return
	}
	m.connectionsRetire.Inc()
}

// RecordPartialApply records an edge write whose connection write failed.
func (m *Manager) RecordPartialApply() {
	if m == nil {
		return
	}
	m.partialApplies.Inc()
}

// RecordReconcile records the outcome of a reconciliation pass.
func (m *Manager) RecordReconcile(repaired, retired, failed int) {
	if m == nil {
		return
	}
	m.reconcileRuns.Inc()
	m.reconcileRepairs.WithLabelValues("upserted").Add(float64(repaired))
	m.reconcileRepairs.WithLabelValues("retired").Add(float64(retired))
	m.reconcileRepairs.WithLabelValues("failed").Add(float64(failed))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Manager) RecordBreakerTransition(breaker, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(breaker, to).Inc()
}

// RecordEventPublished records a published domain event.
func (m *Manager) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a failed event handler.
func (m *Manager) RecordEventFailed(eventType string) {
	if m == nil {
		return
	}
	m.eventsFailed.WithLabelValues(eventType).Inc()
}

// RecordNotification records a match notification delivery attempt.
func (m *Manager) RecordNotification(channel string, success bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !success {
		result = "failed"
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

// RecordJobRun records a scheduled job execution.
func (m *Manager) RecordJobRun(job string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(route, method, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(float64(duration) / float64(time.Millisecond))
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
