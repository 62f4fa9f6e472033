// Package security holds request hardening middleware.
package security

import (
	"net/http"
)

// MaxBodySizeMiddleware returns middleware that limits the request body size.
// The limit is specified in megabytes. Uploads already capped per session are
// additionally bounded per request here.
func MaxBodySizeMiddleware(maxSizeMB int) func(http.Handler) http.Handler {
	maxBytes := int64(maxSizeMB) * 1024 * 1024

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
