// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the ablauf gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// StreamBuckets defines histogram buckets suited for entity run latencies,
// ranging from 10ms to 120s.
var StreamBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ablauf_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ablauf_request_duration_seconds",
			Help:    "Request duration",
			Buckets: StreamBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ablauf_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// StreamEventsTotal counts protocol events written to streams by event type.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ablauf_stream_events_total",
			Help: "Stream events written",
		},
		[]string{"type"},
	)

	// EntityRunsTotal counts entity runs by entity kind and outcome.
	EntityRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ablauf_entity_runs_total",
			Help: "Entity runs",
		},
		[]string{"kind", "outcome"},
	)

	// RunUpdatesTotal counts updates consumed from entity runs by update kind.
	RunUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ablauf_run_updates_total",
			Help: "Run updates consumed",
		},
		[]string{"kind"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ablauf_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		StreamEventsTotal,
		EntityRunsTotal,
		RunUpdatesTotal,
		RateLimitRejectedTotal,
	)
}

// RecordEntityRun increments the run counter for one finished entity run.
func RecordEntityRun(kind, outcome string) {
	EntityRunsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRunUpdate increments the update counter for one consumed update.
func RecordRunUpdate(kind string) {
	RunUpdatesTotal.WithLabelValues(kind).Inc()
}

// RecordStreamEvent increments the event counter for one written event.
func RecordStreamEvent(eventType string) {
	StreamEventsTotal.WithLabelValues(eventType).Inc()
}
