// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest outcomes recorded by RecordIngest.
const (
	IngestCreated  = "created"
	IngestRejected = "rejected"
	// IngestRetried counts messages left on the broker after a store failure.
	IngestRetried = "retried"
)

// Registry owns a Prometheus registry preloaded with HTTP, ingest and Go
// runtime collectors. Each Registry is independent so tests can create as
// many as they like.
type Registry struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	inFlight        prometheus.Gauge
	ingested        *prometheus.CounterVec
}

// NewRegistry creates a registry whose service metrics carry the given
// namespace prefix. An empty namespace leaves names unprefixed.
func NewRegistry(namespace string) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "Queue messages processed by the ingestion worker",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(
		r.requestDuration,
		r.requestsTotal,
		r.inFlight,
		r.ingested,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveHTTP records one finished request. route is the matched route
// pattern, never the raw path, to keep label cardinality bounded.
func (r *Registry) ObserveHTTP(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	r.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	r.requestsTotal.WithLabelValues(method, route, code).Inc()
}

// RequestStarted increments the in-flight gauge and returns the matching decrement.
func (r *Registry) RequestStarted() (done func()) {
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// RecordIngest counts one processed queue message.
func (r *Registry) RecordIngest(outcome string) {
	r.ingested.WithLabelValues(outcome).Inc()
}

// Register adds a custom collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// MustRegister adds collectors and panics on conflicts.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Handler serves the registry in the Prometheus exposition format. It is
// mounted at /metrics on the management server.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
