// Package metrics exposes Prometheus instrumentation for fetches, the
// response cache, layout ticks and live explorer sessions.
//
// Metrics are registered on a private registry so tests can build isolated
// instances with New and scrape them through Handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trustmap"

// Metrics holds every collector trustmap records.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts remote requests. Labels: kind, status.
	RequestsTotal *prometheus.CounterVec
	// RequestSeconds measures remote request latency. Labels: kind.
	RequestSeconds *prometheus.HistogramVec
	// CacheTotal counts cache lookups. Labels: result (hit, miss).
	CacheTotal *prometheus.CounterVec
	// FetchesTotal counts neighbourhood fetches. Labels: kind, outcome.
	FetchesTotal *prometheus.CounterVec
	// GraphNodes observes normalized graph sizes. Labels: kind.
	GraphNodes *prometheus.HistogramVec
	// LayoutTicks counts simulation ticks.
	LayoutTicks prometheus.Counter
	// ActiveSessions tracks open explorer sessions.
	ActiveSessions prometheus.Gauge
}

// New builds a Metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Remote relationship requests by kind and HTTP status.",
		}, []string{"kind", "status"}),
		RequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Remote request latency by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		CacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "neighbourhoods_total",
			Help:      "Neighbourhood fetches by kind and outcome.",
		}, []string{"kind", "outcome"}),
		GraphNodes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Node count of normalized graphs.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 150, 200},
		}, []string{"kind"}),
		LayoutTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "ticks_total",
			Help:      "Force simulation ticks.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "serve",
			Name:      "active_sessions",
			Help:      "Open explorer sessions.",
		}),
	}
	reg.MustRegister(
		m.RequestsTotal, m.RequestSeconds, m.CacheTotal, m.FetchesTotal,
		m.GraphNodes, m.LayoutTicks, m.ActiveSessions,
	)
	return m
}

// NewWithRuntime is New plus Go runtime and process collectors.
func NewWithRuntime() *Metrics {
	m := New()
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one remote request. A nil receiver is a no-op.
func (m *Metrics) ObserveRequest(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind, status).Inc()
	m.RequestSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// CacheHit records a cache lookup result.
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheTotal.WithLabelValues("miss").Inc()
}

// ObserveFetch records a completed neighbourhood fetch.
func (m *Metrics) ObserveFetch(kind, outcome string, nodes int) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(kind, outcome).Inc()
	if outcome == "ok" {
		m.GraphNodes.WithLabelValues(kind).Observe(float64(nodes))
	}
}

// Tick records one layout tick.
func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.LayoutTicks.Inc()
}

// SessionOpened increments the live session gauge and returns its closer.
func (m *Metrics) SessionOpened() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveSessions.Inc()
	return m.ActiveSessions.Dec
}
