// Package metrics owns the Prometheus registry and the collectors shared by
// the HTTP, auth, tasks and realtime layers.
//
// All recording methods are safe on a nil *Metrics, so components can take it
// as an optional dependency.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tasker"

// Metrics is a private registry plus typed recorders.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	authEvents    *prometheus.CounterVec
	taskMutations *prometheus.CounterVec

	feedConnections prometheus.Gauge
	feedEvents      *prometheus.CounterVec
	feedDropped     prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status class.",
		}, []string{"method", "route", "status_class"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Auth operations by event (register, login, refresh, logout, gate) and result.",
		}, []string{"event", "result"}),

		taskMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "mutations_total",
			Help:      "Successful task mutations by operation.",
		}, []string{"op"}),

		feedConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connections",
			Help:      "Open task-event feed connections.",
		}),

		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Task events delivered to subscriber queues, by type.",
		}, []string{"type"}),

		feedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Task events dropped because a subscriber queue was full.",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.authEvents,
		m.taskMutations,
		m.feedConnections,
		m.feedEvents,
		m.feedDropped,
	)
	return m
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveHTTP records one finished request. route should be the mux pattern,
// never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, StatusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// AuthEvent counts an auth outcome, e.g. ("login", "invalid_credentials").
func (m *Metrics) AuthEvent(event, result string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event, result).Inc()
}

// TaskMutation counts a successful create/update/delete.
func (m *Metrics) TaskMutation(op string) {
	if m == nil {
		return
	}
	m.taskMutations.WithLabelValues(op).Inc()
}

// FeedConnected adjusts the open-connection gauge by delta.
func (m *Metrics) FeedConnected(delta int) {
	if m == nil {
		return
	}
	m.feedConnections.Add(float64(delta))
}

// FeedDelivered counts an event queued for a subscriber.
func (m *Metrics) FeedDelivered(eventType string) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(eventType).Inc()
}

// FeedDropped counts an event dropped on a full queue.
func (m *Metrics) FeedDropped() {
	if m == nil {
		return
	}
	m.feedDropped.Inc()
}

// StatusClass maps 404 to "4xx" and so on; out-of-range codes are "unknown".
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
