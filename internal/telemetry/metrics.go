package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP/WS control-surface latency.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "dnscp",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// ProjectionsTotal counts projection transactions by terminal phase
// (committed, rolled_back, failed, fatal, or validating for a dry run)
// (spec §4.5).
var ProjectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "projection",
		Name:      "transactions_total",
		Help:      "Total number of projection transactions by outcome.",
	},
	[]string{"outcome"},
)

// ProjectionDuration tracks how long a transaction spends from received to
// its terminal phase.
var ProjectionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "dnscp",
		Subsystem: "projection",
		Name:      "duration_seconds",
		Help:      "Projection transaction duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
)

// ForwarderHealthChecksTotal counts probe outcomes by forwarder and status
// (spec §4.6).
var ForwarderHealthChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "health",
		Name:      "checks_total",
		Help:      "Total number of forwarder health probes by status.",
	},
	[]string{"forwarder", "status"},
)

// CircuitBreakerStateChanges counts circuit breaker state transitions.
var CircuitBreakerStateChanges = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "health",
		Name:      "circuit_breaker_state_changes_total",
		Help:      "Total number of circuit breaker state transitions by forwarder and new state.",
	},
	[]string{"forwarder", "state"},
)

// FeedRefreshTotal counts threat feed refresh attempts by feed and outcome
// (spec §4.7).
var FeedRefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "feed",
		Name:      "refresh_total",
		Help:      "Total number of threat feed refreshes by outcome.",
	},
	[]string{"feed", "outcome"},
)

// QueryLogLinesIngestedTotal counts parsed query log lines (spec §4.8).
var QueryLogLinesIngestedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "logingest",
		Name:      "lines_ingested_total",
		Help:      "Total number of query log lines parsed and persisted.",
	},
)

// QueryLogParseErrorsTotal counts lines that failed to parse.
var QueryLogParseErrorsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "logingest",
		Name:      "parse_errors_total",
		Help:      "Total number of query log lines that failed to parse.",
	},
)

// EventsPublishedTotal counts events published to the bus by type (spec §4.9).
var EventsPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "eventbus",
		Name:      "published_total",
		Help:      "Total number of events published by type.",
	},
	[]string{"event_type"},
)

// EventsDroppedTotal counts events dropped due to subscriber backpressure.
var EventsDroppedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "eventbus",
		Name:      "dropped_total",
		Help:      "Total number of events dropped due to subscriber backpressure.",
	},
	[]string{"subscription_id"},
)

// SchedulerTaskRunsTotal counts scheduled task executions by task and outcome
// (spec §4.10).
var SchedulerTaskRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "scheduler",
		Name:      "task_runs_total",
		Help:      "Total number of scheduled task executions by task and outcome.",
	},
	[]string{"task", "outcome"},
)

// SchedulerTaskSkippedTotal counts ticks skipped because the prior run of
// the same task was still in flight.
var SchedulerTaskSkippedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dnscp",
		Subsystem: "scheduler",
		Name:      "task_skipped_total",
		Help:      "Total number of scheduled task ticks skipped due to overlap.",
	},
	[]string{"task"},
)

// All returns every dnscp-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		ProjectionsTotal,
		ProjectionDuration,
		ForwarderHealthChecksTotal,
		CircuitBreakerStateChanges,
		FeedRefreshTotal,
		QueryLogLinesIngestedTotal,
		QueryLogParseErrorsTotal,
		EventsPublishedTotal,
		EventsDroppedTotal,
		SchedulerTaskRunsTotal,
		SchedulerTaskSkippedTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors, the shared HTTPRequestDuration metric, and any additional
// collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
