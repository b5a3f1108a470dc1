// Package metrics holds the Prometheus collectors exported on METRICS_PORT.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkup_livequery_active_subscriptions",
			Help: "Live query subscriptions currently open",
		},
		[]string{"stream"},
	)

	SnapshotDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_livequery_snapshots_total",
			Help: "Snapshots produced by live queries by outcome",
		},
		[]string{"stream", "outcome"}, // delivered, error, dropped, panic
	)

	SessionMaterializations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_session_materializations_total",
			Help: "Session exchanges by outcome",
		},
		[]string{"outcome"}, // created, updated, suspended, backend_error, invalid_token
	)

	AuthzDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_authz_denied_total",
			Help: "Requests denied by a permission gate",
		},
		[]string{"role", "permission"},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_uploads_total",
			Help: "Upload attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	UploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkup_upload_bytes",
			Help:    "Size of accepted uploads",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
		[]string{"kind"},
	)

	TriggerExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_trigger_executions_total",
			Help: "Background trigger executions by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	TriggerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkup_trigger_duration_seconds",
			Help:    "Background trigger latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	CleanupDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_cleanup_deleted_total",
			Help: "Records removed by scheduled cleanup",
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkup_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "linkup_realtime_connections",
		Help: "Open WebSocket connections",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkup_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordTrigger(event string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	TriggerExecutions.WithLabelValues(event, outcome).Inc()
	TriggerDuration.WithLabelValues(event).Observe(d.Seconds())
}

func RecordUpload(kind, outcome string, size int64) {
	Uploads.WithLabelValues(kind, outcome).Inc()
	if outcome == "ok" {
		UploadBytes.WithLabelValues(kind).Observe(float64(size))
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
