// Package metrics provides Prometheus metrics for the CRM service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns a registry and every metric the service exports.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	leadsScored      prometheus.Counter
	unknownOperators *prometheus.CounterVec
	unknownFields    *prometheus.CounterVec

	rescoreCycles prometheus.Counter
	rescoreLeads  *prometheus.CounterVec
	rescoreLast   prometheus.Gauge

	enrichmentRequests *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the "crm" metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRuntimeCollectors adds Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// NewManager creates a manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "crm",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.httpInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests being served",
	})

	m.leadsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "leads_scored_total",
		Help:      "Total number of lead score computations",
	})

	m.unknownOperators = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "scoring_unknown_operator_total",
		Help:      "Criteria skipped because of an unrecognized operator",
	}, []string{"operator"})

	m.unknownFields = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "scoring_unknown_field_total",
		Help:      "Criteria skipped because of an unrecognized lead field",
	}, []string{"field"})

	m.rescoreCycles = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "rescore_cycles_total",
		Help:      "Completed rescore pipeline cycles",
	})

	m.rescoreLeads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "rescore_leads_total",
		Help:      "Leads handled by the rescore pipeline",
	}, []string{"result"})

	m.rescoreLast = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "rescore_last_run_timestamp_seconds",
		Help:      "Unix time the last rescore cycle finished",
	})

	m.enrichmentRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "enrichment_requests_total",
		Help:      "Website enrichment attempts",
	}, []string{"result"})

	m.eventsPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_published_total",
		Help:      "Lead events handed to the broker",
	}, []string{"type", "result"})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request count, latency and in-flight requests.
// Paths are the matched route template, so ids do not explode cardinality.
func (m *Manager) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Manager) LeadScored() {
	m.leadsScored.Inc()
}

func (m *Manager) RescoreCycle(finished time.Time) {
	m.rescoreCycles.Inc()
	m.rescoreLast.Set(float64(finished.Unix()))
}

// RescoreLead counts one lead with result "updated", "unchanged" or "failed".
func (m *Manager) RescoreLead(result string) {
	m.rescoreLeads.WithLabelValues(result).Inc()
}

// EnrichmentResult satisfies enrichment.Recorder.
func (m *Manager) EnrichmentResult(result string) {
	m.enrichmentRequests.WithLabelValues(result).Inc()
}

func (m *Manager) EventPublished(eventType string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}
