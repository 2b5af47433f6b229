// Package metrics exposes the debate engine's Prometheus instrumentation,
// registered once at process startup and shared between the server and
// worker binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every metric the server and worker processes emit.
type Registry struct {
	DebatesSubmitted  *prometheus.CounterVec
	DebatesCompleted  *prometheus.CounterVec
	RateLimitRejected *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	QueueDepth        prometheus.Gauge
	SSESubscriptions  prometheus.Gauge
	ReaperReclassified *prometheus.CounterVec
}

// New registers every metric under namespace (e.g. "debatecore").
func New(namespace string) *Registry {
	if namespace == "" {
		namespace = "debatecore"
	}
	return &Registry{
		DebatesSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "debates_submitted_total",
			Help:      "Total number of debates accepted for processing",
		}, []string{"mode"}),

		DebatesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "debates_completed_total",
			Help:      "Total number of debates that reached a terminal status",
		}, []string{"status"}),

		RateLimitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "rate_limit_rejected_total",
			Help:      "Total number of requests rejected by quota or rate limiting",
		}, []string{"reason"}),

		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage execution duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"stage"}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "inline_queue_depth",
			Help:      "Number of jobs currently buffered in the inline job queue",
		}),

		SSESubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "sse_subscriptions",
			Help:      "Number of currently open SSE subscriptions",
		}),

		ReaperReclassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "reaper_reclassified_total",
			Help:      "Total number of debates reclassified by the stale-run reaper",
		}, []string{"new_status"}),
	}
}
