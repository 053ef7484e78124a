// Package metrics exposes Prometheus metrics for the outreach scheduler
// and API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	// Tick engine
	TicksTotal           prometheus.Counter
	TickDurationSeconds  prometheus.Histogram
	EnrollmentsProcessed prometheus.Counter
	SendsTotal           *prometheus.CounterVec
	SuppressedTotal      prometheus.Counter
	CompletedTotal       prometheus.Counter
	SkippedQuietTotal    prometheus.Counter
	RateLimitedTotal     prometheus.Counter

	// API
	HTTPRequestsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_ticks_total",
			Help: "Total number of scheduler ticks run",
		}),
		TickDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outreach_tick_duration_seconds",
			Help:    "Duration of scheduler ticks",
			Buckets: prometheus.DefBuckets,
		}),
		EnrollmentsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_enrollments_processed_total",
			Help: "Total number of enrollments processed by ticks",
		}),
		SendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_sends_total",
			Help: "Total number of send attempts by logged status",
		}, []string{"status"}),
		SuppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_suppressed_total",
			Help: "Total number of sends skipped for suppressed contacts",
		}),
		CompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_enrollments_completed_total",
			Help: "Total number of enrollments completed",
		}),
		SkippedQuietTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_skipped_quiet_total",
			Help: "Total number of sends deferred by quiet hours",
		}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_rate_limited_total",
			Help: "Total number of ticks halted by the hourly rate cap",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		registry: reg,
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickDurationSeconds,
		m.EnrollmentsProcessed,
		m.SendsTotal,
		m.SuppressedTotal,
		m.CompletedTotal,
		m.SkippedQuietTotal,
		m.RateLimitedTotal,
		m.HTTPRequestsTotal,
	)

	return m
}

// Registry returns the prometheus registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
