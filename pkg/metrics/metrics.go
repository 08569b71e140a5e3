// Package metrics implements the Prometheus registry of spec §4.13,
// exposed on the same kind of internal-only optional HTTP port the
// teacher's main.go wires up for its health check server
// (cfg.HealthPort, grounded on next.orly.dev/main.go), reusing
// github.com/prometheus/client_golang (an indirect dependency promoted to
// direct) instead of the teacher's bare /healthz string response.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the broker's counters, gauges and histogram. The request
// handler updates JobsSubmitted, QueueDepth (at admission only),
// RateLimited, ValidationFails, AuthFailures and ConnectionsOpen; nothing
// in the broker updates JobsCompleted, JobsFailed, JobsCancelled,
// JobsRetried or ProcessingTime, and the dispatcher reports no metrics.
type Registry struct {
	JobsSubmitted   *prometheus.CounterVec
	JobsCompleted   prometheus.Counter
	JobsFailed      prometheus.Counter
	JobsCancelled   prometheus.Counter
	JobsRetried     prometheus.Counter
	QueueDepth      prometheus.Gauge
	ProcessingTime  prometheus.Histogram
	RateLimited     prometheus.Counter
	ValidationFails *prometheus.CounterVec
	AuthFailures    *prometheus.CounterVec
	ConnectionsOpen prometheus.Gauge
}

// New constructs and registers a Registry on reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		JobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "printbroker_jobs_submitted_total",
			Help: "Total print jobs admitted, labeled by user.",
		}, []string{"user"}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "printbroker_jobs_completed_total",
			Help: "Total print jobs that completed successfully.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "printbroker_jobs_failed_total",
			Help: "Total print jobs that failed permanently.",
		}),
		JobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "printbroker_jobs_cancelled_total",
			Help: "Total print jobs cancelled before dispatch completed.",
		}),
		JobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "printbroker_jobs_retried_total",
			Help: "Total retry attempts issued by the dispatcher.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "printbroker_queue_depth",
			Help: "Current number of jobs waiting in the priority queue.",
		}),
		ProcessingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "printbroker_processing_time_ms",
			Help:    "Job processing time in milliseconds, started_at to completed_at.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "printbroker_rate_limited_total",
			Help: "Total requests refused by the rate limiter.",
		}),
		ValidationFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "printbroker_validation_rejected_total",
			Help: "Total requests rejected by the validator, labeled by field.",
		}, []string{"field"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "printbroker_auth_failures_total",
			Help: "Total authentication failures, labeled by reason.",
		}, []string{"reason"}),
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "printbroker_connections_open",
			Help: "Current number of open client connections.",
		}),
	}
	reg.MustRegister(
		m.JobsSubmitted, m.JobsCompleted, m.JobsFailed, m.JobsCancelled,
		m.JobsRetried, m.QueueDepth, m.ProcessingTime, m.RateLimited,
		m.ValidationFails, m.AuthFailures, m.ConnectionsOpen,
	)
	return m
}
