// Package metrics holds the Prometheus instruments for the style engine.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every instrument on its own registry so several instances
// can coexist (one per test, one per process).
type Metrics struct {
	registry *prometheus.Registry

	MeetingsTracked prometheus.Counter
	StyleIncrements *prometheus.CounterVec
	StoreFallbacks  *prometheus.CounterVec
	DefaultProfiles prometheus.Counter
	TrackDuration   prometheus.Histogram
	Jobs            *prometheus.CounterVec
	SkippedEntries  prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MeetingsTracked: f.NewCounter(prometheus.CounterOpts{
			Name: "hoststyle_meetings_tracked_total",
			Help: "Total number of completed sessions applied to a host profile",
		}),

		StyleIncrements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hoststyle_style_increments_total",
			Help: "Style counter increments by style",
		}, []string{"style"}),

		// op: "load" or "save"; reason: "primary_error", "primary_missing", "fallback_error"
		StoreFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hoststyle_store_fallback_total",
			Help: "Degraded-mode events in the two-tier profile store",
		}, []string{"op", "reason"}),

		DefaultProfiles: f.NewCounter(prometheus.CounterOpts{
			Name: "hoststyle_default_profiles_total",
			Help: "Profiles constructed because no tier held a value",
		}),

		TrackDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hoststyle_track_duration_seconds",
			Help:    "Duration of a full load-analyze-update-save cycle",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hoststyle_jobs_total",
			Help: "Background tracking jobs by outcome",
		}, []string{"status"}),

		SkippedEntries: f.NewCounter(prometheus.CounterOpts{
			Name: "hoststyle_session_entries_skipped_total",
			Help: "Malformed session entries excluded from analysis",
		}),

		// route is the chi route pattern, not the raw path, to bound cardinality.
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hoststyle_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hoststyle_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (used by tests to gather values).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The helpers below tolerate a nil receiver so components can run without
// instrumentation.

func (m *Metrics) Fallback(op, reason string) {
	if m == nil {
		return
	}
	m.StoreFallbacks.WithLabelValues(op, reason).Inc()
}

func (m *Metrics) DefaultProfile() {
	if m == nil {
		return
	}
	m.DefaultProfiles.Inc()
}

func (m *Metrics) Tracked(styles []string, seconds float64) {
	if m == nil {
		return
	}
	m.MeetingsTracked.Inc()
	m.TrackDuration.Observe(seconds)
	for _, s := range styles {
		m.StyleIncrements.WithLabelValues(s).Inc()
	}
}

func (m *Metrics) Skipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SkippedEntries.Add(float64(n))
}

func (m *Metrics) Job(status string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(status).Inc()
}

func (m *Metrics) Request(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}
