// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Fetch metrics
	FetchAttempts *prometheus.CounterVec
	FetchOutcomes *prometheus.CounterVec
	FetchLatency  *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec

	// Signal metrics
	SignalsGenerated *prometheus.CounterVec
	SignalConfidence prometheus.Histogram

	// Swap metrics
	SwapsInitiated    *prometheus.CounterVec
	SwapsFailed       *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	PendingSwaps      prometheus.Gauge

	// Runtime metrics
	RefreshRunsTotal *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	StreamClients    prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
	LastSuccessfulPoll    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "shiftmind"
	}

	return &Metrics{
		FetchAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Total number of outbound HTTP attempts by host and result class",
		}, []string{"host", "class"}),
		FetchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "outcomes_total",
			Help:      "Total number of fetch calls by final outcome",
		}, []string{"host", "outcome"}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "attempt_latency_seconds",
			Help:      "Outbound HTTP attempt latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"result"}),

		SignalsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "generated_total",
			Help:      "Total number of signals generated by strategy and action",
		}, []string{"strategy", "action"}),
		SignalConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "confidence",
			Help:      "Distribution of signal confidence",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1},
		}),

		SwapsInitiated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "initiated_total",
			Help:      "Total number of swaps created at the provider by pair",
		}, []string{"from", "to"}),
		SwapsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "failed_total",
			Help:      "Total number of swap operations that failed by stage",
		}, []string{"stage"}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "status_transitions_total",
			Help:      "Total number of record status transitions",
		}, []string{"status"}),
		PendingSwaps: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "pending",
			Help:      "Number of pending swaps seen by the last status poll",
		}),

		RefreshRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "refresh_runs_total",
			Help:      "Total number of price refresh runs by status",
		}, []string{"status"}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "refresh_duration_seconds",
			Help:      "Price refresh run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected signal stream clients",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful price refresh",
		}),
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful swap status poll",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetchAttempt records one outbound HTTP attempt.
func RecordFetchAttempt(host, class string, seconds float64) {
	DefaultMetrics.FetchAttempts.WithLabelValues(host, class).Inc()
	DefaultMetrics.FetchLatency.WithLabelValues(host).Observe(seconds)
}

// RecordFetchOutcome records the final outcome of a fetch call.
func RecordFetchOutcome(host, outcome string) {
	DefaultMetrics.FetchOutcomes.WithLabelValues(host, outcome).Inc()
}

// RecordCacheLookup records a response cache lookup ("fresh", "stale", "miss").
func RecordCacheLookup(result string) {
	DefaultMetrics.CacheLookups.WithLabelValues(result).Inc()
}

// RecordSignal records a generated signal.
func RecordSignal(strategy, action string, confidence float64) {
	DefaultMetrics.SignalsGenerated.WithLabelValues(strategy, action).Inc()
	DefaultMetrics.SignalConfidence.Observe(confidence)
}

// RecordSwapInitiated increments the swaps initiated counter.
func RecordSwapInitiated(from, to string) {
	DefaultMetrics.SwapsInitiated.WithLabelValues(from, to).Inc()
}

// RecordSwapFailure records a failed swap operation at the given stage.
func RecordSwapFailure(stage string) {
	DefaultMetrics.SwapsFailed.WithLabelValues(stage).Inc()
}

// RecordStatusTransition records a record status change.
func RecordStatusTransition(status string) {
	DefaultMetrics.StatusTransitions.WithLabelValues(status).Inc()
}

// UpdatePendingSwaps sets the pending swap gauge.
func UpdatePendingSwaps(n int) {
	DefaultMetrics.PendingSwaps.Set(float64(n))
}

// RecordRefreshRun records a price refresh run.
func RecordRefreshRun(status string, durationSeconds float64) {
	DefaultMetrics.RefreshRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RefreshDuration.Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulRefresh.SetToCurrentTime()
	}
}

// RecordPoll marks a completed status poll.
func RecordPoll() {
	DefaultMetrics.LastSuccessfulPoll.SetToCurrentTime()
}

// UpdateStreamClients sets the connected stream client gauge.
func UpdateStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
