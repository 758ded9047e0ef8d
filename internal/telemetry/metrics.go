// Package telemetry provides application-level observability for the plugin
// registry.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<PLR_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is NOT served by the Gin router, so it
// stays off the public ingress path and bypasses rate-limiting middleware.
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/plugins/:author/:name/:version) rather than the raw request URL to
// prevent unbounded label cardinality from user-supplied path segments such as
// plugin names or version strings.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
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

// Registry domain metrics.
//
// PluginDownloadsTotal is incremented whenever a client resolves a download
// URL for a plugin version. PublishesTotal counts publish attempts by outcome
// ("ok" or the failing stage name), and PublishDuration tracks end-to-end
// pipeline latency including archive extraction and repackaging.
var (
	PluginDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_downloads_total",
			Help: "Total number of plugin version downloads, by author.",
		},
		[]string{"author"},
	)

	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_publishes_total",
			Help: "Total number of publish attempts, by outcome (ok or failing stage).",
		},
		[]string{"outcome"},
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plugin_publish_duration_seconds",
			Help:    "End-to-end publish pipeline latency, including extraction and repackaging.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

// Database connection pool gauges, polled by StartDBStatsCollector.
var (
	dbOpenConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_open_connections",
			Help: "Number of open connections in a database pool, by pool name.",
		},
		[]string{"pool"},
	)

	dbInUseConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_in_use_connections",
			Help: "Number of connections currently in use, by pool name.",
		},
		[]string{"pool"},
	)

	dbIdleConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_idle_connections",
			Help: "Number of idle connections, by pool name.",
		},
		[]string{"pool"},
	)
)

// StartDBStatsCollector begins exporting pool statistics for the named
// database handle every 30 seconds. The goroutine runs for the lifetime of
// the process; there is one pool per handle (read/write split), so the name
// label distinguishes them.
func StartDBStatsCollector(name string, db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			dbOpenConnections.WithLabelValues(name).Set(float64(stats.OpenConnections))
			dbInUseConnections.WithLabelValues(name).Set(float64(stats.InUse))
			dbIdleConnections.WithLabelValues(name).Set(float64(stats.Idle))
		}
	}()
	slog.Debug("db stats collector started", "pool", name)
}
