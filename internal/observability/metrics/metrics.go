// Package metrics provides Prometheus instrumentation for the verification
// server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Session metrics
	sessionCreateTotal prometheus.Counter
	filesUploadedTotal prometheus.Counter

	// Verification metrics
	verificationTotal  *prometheus.CounterVec
	verificationRetry  prometheus.Counter
	matchStoredTotal   *prometheus.CounterVec
	batchLookupTotal   prometheus.Counter
	fetchAttemptsTotal *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	sessionCreateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_create_total",
			Help: "Total number of verification sessions created",
		},
	)

	filesUploadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_files_uploaded_total",
			Help: "Total number of new files admitted into sessions",
		},
	)

	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_attempt_total",
			Help: "Total number of verification attempts by outcome",
		},
		[]string{"result"},
	)

	verificationRetry = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_retry_total",
			Help: "Total number of expanded-source retries",
		},
	)

	matchStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_stored_total",
			Help: "Total number of confirmed matches persisted",
		},
		[]string{"status"},
	)

	batchLookupTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_lookup_total",
			Help: "Total number of batch address lookups",
		},
	)

	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetch_total",
			Help: "Total number of missing-source fetch attempts",
		},
		[]string{"status"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
