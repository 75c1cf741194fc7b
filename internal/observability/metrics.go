package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "escalation_gateway"

// Metrics wraps the Prometheus collectors exported by the service.
type Metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	escalations    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	storeSize      *prometheus.GaugeVec
	swept          *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by error code.",
		}, []string{"path", "method", "code"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Completed escalations by outcome (created, deduplicated, replayed).",
		}, []string{"outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_rejections_total",
			Help:      "Rejected escalations by pipeline stage and error kind.",
		}, []string{"stage", "kind"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "helpdesk_call_duration_seconds",
			Help:      "Helpdesk backend call latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "result"}),
		storeSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_entries",
			Help:      "Entries currently held by each in-memory store.",
		}, []string{"store"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_swept_total",
			Help:      "Entries evicted by maintenance sweeps.",
		}, []string{"store"}),
	}
	m.registry.MustRegister(m.requests, m.requestLatency, m.errors, m.escalations,
		m.rejections, m.backendLatency, m.storeSize, m.swept)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordEscalation counts a completed escalation.
func (m *Metrics) RecordEscalation(outcome string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(outcome).Inc()
}

// RecordRejection counts an escalation rejected at stage.
func (m *Metrics) RecordRejection(stage, kind string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(stage, kind).Inc()
}

// ObserveBackend records a helpdesk call.
func (m *Metrics) ObserveBackend(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.backendLatency.WithLabelValues(op, result).Observe(duration.Seconds())
}

// RecordSweep updates the size gauge and eviction counter for a store.
func (m *Metrics) RecordSweep(store string, removed, size int) {
	if m == nil {
		return
	}
	m.swept.WithLabelValues(store).Add(float64(removed))
	m.storeSize.WithLabelValues(store).Set(float64(size))
}
