// metrics.go - Prometheus metrics for the upload service.
//
// HTTP-level counters are recorded by the logging middleware; business
// counters are updated at the point where the outcome is decided.
package server

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ard_http_requests_total",
			Help: "HTTP requests handled, by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ard_uploads_total",
			Help: "Upload attempts by outcome (success or failure reason).",
		},
		[]string{"outcome"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ard_upload_bytes_total",
			Help: "Bytes persisted by successful uploads.",
		},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ard_rate_limited_total",
			Help: "Requests rejected by the per-address rate limiter.",
		},
	)

	authFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ard_auth_failures_total",
			Help: "Failed authentication and authorization attempts.",
		},
	)

	filesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ard_files_total",
			Help: "Files currently present in the upload directory.",
		},
	)
)

// metricsPath collapses per-file URLs so label cardinality stays
// bounded.
func metricsPath(path string) string {
	if strings.HasPrefix(path, "/download/") {
		return "/download/{filename}"
	}
	return path
}
