// Package telemetry provides application-level observability for the
// OpenBoard backend.
//
// All metrics are registered against the default Prometheus registry and are
// served on a side-channel HTTP port (default 9090) by main.go, separate from
// the main API listener so the scrape path stays off the public ingress and
// outside the rate-limiting middleware.
//
// HTTP metrics use c.FullPath() (the Gin route template, e.g.
// /v1/boards/:id/cards) rather than the raw URL so user-supplied path
// segments cannot inflate label cardinality.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// AdmissionDecisions counts the outcome of every admission check, by endpoint
// key and decision (allowed, rate_limited, quota_exceeded, fail_open).
//
// fail_open observations deserve an alert: they mean the counter store is
// unreachable and abuse mitigation is effectively off.
//
// Example PromQL queries:
//   - Rejection rate by endpoint: sum by (endpoint) (rate(admission_decisions_total{decision!="allowed"}[5m]))
//   - Fail-open alert:            increase(admission_decisions_total{decision="fail_open"}[5m]) > 0
var AdmissionDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admission_decisions_total",
		Help: "Total number of admission control decisions, by endpoint and decision.",
	},
	[]string{"endpoint", "decision"},
)

// Board lifecycle metrics.
//
// BoardClonesTotal is labelled by source kind ("template" or "public") so the
// popularity of template-driven onboarding is visible.
// BlobCleanupFailuresTotal counts media references the deferred cleanup could
// not delete; orphaned blobs are an accepted cost, but a rising rate points
// at a blob-store problem.
var (
	BoardClonesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_clones_total",
			Help: "Total number of boards cloned, by source kind.",
		},
		[]string{"source"},
	)

	BoardDeletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "board_deletions_total",
			Help: "Total number of boards deleted (cards cascade with the board).",
		},
	)

	BlobCleanupFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blob_cleanup_failures_total",
			Help: "Total number of media blobs the post-deletion cleanup failed to remove.",
		},
	)
)

// DBOpenConnections tracks the number of open connections in the sql.DB pool,
// sampled every 30 seconds rather than per-request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples the
// connection pool every 30 seconds and updates DBOpenConnections. The
// goroutine exits when the database becomes unreachable, which happens
// naturally at shutdown once the pool is closed.
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(conn *sqlx.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(conn.Stats().OpenConnections))
		}
	}()
}
