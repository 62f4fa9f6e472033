package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := New(Config{RequestsPerMin: 60, BurstSize: 3})
	defer rl.Stop()
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/verify", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d within burst", i)
	}
}

func TestRateLimiter_BlocksOverBurst(t *testing.T) {
	rl := New(Config{RequestsPerMin: 1, BurstSize: 1})
	defer rl.Stop()
	handler := rl.Middleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	rl := New(Config{RequestsPerMin: 1, BurstSize: 1})
	defer rl.Stop()
	handler := rl.Middleware()(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/verify", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A different client has its own bucket
	second := httptest.NewRequest(http.MethodGet, "/verify", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_HealthExempt(t *testing.T) {
	rl := New(Config{RequestsPerMin: 1, BurstSize: 1})
	defer rl.Stop()
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddleware_DisabledIsNoop(t *testing.T) {
	handler := Middleware(Config{Enabled: false})(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/verify", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
