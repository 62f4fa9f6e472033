package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(rw.status),
			).Inc()

			httpDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// knownPaths is the fixed route surface; everything else collapses to
// "other" to keep label cardinality bounded.
var knownPaths = map[string]bool{
	"/health":                  true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/session/input-files":     true,
	"/session/verify-validated": true,
	"/session/data":            true,
	"/session/clear":           true,
	"/check-by-addresses":      true,
	"/verify":                  true,
	"/chains":                  true,
}

func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	if strings.HasPrefix(path, "/session/") {
		return "/session/other"
	}
	return "other"
}
