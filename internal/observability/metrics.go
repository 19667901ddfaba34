// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Subscription metrics
	UpdatesReceived   *prometheus.CounterVec
	DecodeFailures    *prometheus.CounterVec
	TransportFailures prometheus.Counter

	// Lifecycle metrics
	PoolsEvicted    prometheus.Counter
	PoolsFailed     prometheus.Counter
	EventsEmitted   *prometheus.CounterVec
	TimeToStatusSix prometheus.Histogram

	// Reserve metrics
	SnapshotsRecorded      prometheus.Counter
	ObservationsSuppressed prometheus.Counter
	VaultReadRetries       prometheus.Counter

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Health metrics
	LastUpdateTimestamp prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "raydium_pool_watch"
	}

	return &Metrics{
		// Subscription metrics
		UpdatesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "updates_received_total",
			Help:      "Total number of program account updates received by status filter",
		}, []string{"status"}),
		DecodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "decode_failures_total",
			Help:      "Total number of account images that failed to decode",
		}, []string{"kind"}),
		TransportFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "transport_failures_total",
			Help:      "Total number of WebSocket transport failures",
		}),

		// Lifecycle metrics
		PoolsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "pools_evicted_total",
			Help:      "Total number of pending pools evicted at capacity",
		}),
		PoolsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "pools_failed_total",
			Help:      "Total number of pools that failed before monitoring completed",
		}),
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "events_emitted_total",
			Help:      "Total number of lifecycle events emitted by type",
		}, []string{"type"}),
		TimeToStatusSix: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "time_to_status_six_seconds",
			Help:      "Time from tee-up to the open-for-trading observation",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		// Reserve metrics
		SnapshotsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reserves",
			Name:      "snapshots_recorded_total",
			Help:      "Total number of reserve snapshots persisted",
		}),
		ObservationsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reserves",
			Name:      "observations_suppressed_total",
			Help:      "Total number of reserve observations below the change threshold",
		}),
		VaultReadRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reserves",
			Name:      "vault_read_retries_total",
			Help:      "Total number of vault balance reads retried during warm-up",
		}),

		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		// Health metrics
		LastUpdateTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_update_timestamp",
			Help:      "Unix timestamp of the last account update received",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// UpdateReceived records one program account update for a status filter.
func (m *Metrics) UpdateReceived(status string) {
	m.UpdatesReceived.WithLabelValues(status).Inc()
	m.LastUpdateTimestamp.SetToCurrentTime()
}

// DecodeFailed records one undecodable account image.
func (m *Metrics) DecodeFailed(kind string) {
	m.DecodeFailures.WithLabelValues(kind).Inc()
}

// RecordTransportFailure increments the transport failures counter.
func RecordTransportFailure() {
	DefaultMetrics.TransportFailures.Inc()
}

// RecordSnapshot increments the snapshots recorded counter.
func RecordSnapshot() {
	DefaultMetrics.SnapshotsRecorded.Inc()
}

// RecordSuppressed counts a reserve observation held back by the
// change threshold.
func RecordSuppressed() {
	DefaultMetrics.ObservationsSuppressed.Inc()
}

// RecordVaultRetry counts one retried vault balance read.
func RecordVaultRetry() {
	DefaultMetrics.VaultReadRetries.Inc()
}

// RecordEviction counts a pending pool evicted at capacity.
func RecordEviction() {
	DefaultMetrics.PoolsEvicted.Inc()
}

// ObserveRPCCall records the latency of one RPC call and, when it
// failed, the error.
func ObserveRPCCall(method string, elapsed time.Duration, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// TickUptime advances the uptime counter by the given interval.
func TickUptime(interval time.Duration) {
	DefaultMetrics.UptimeSeconds.Add(interval.Seconds())
}
