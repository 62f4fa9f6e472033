// Package ratelimit provides per-client token-bucket rate limiting.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jackromo888/sourcify/internal/middleware/realip"
)

// Config holds the configuration for rate limiting
type Config struct {
	// Enabled enables rate limiting
	Enabled bool
	// RequestsPerMin is the number of requests allowed per minute per client
	RequestsPerMin int
	// BurstSize is the maximum burst size
	BurstSize int
	// CleanupMinutes is how often stale client entries are evicted
	CleanupMinutes int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-client rate limiters
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	interval time.Duration
	stopCh   chan struct{}
}

// New creates a RateLimiter and starts its eviction loop.
func New(cfg Config) *RateLimiter {
	interval := time.Duration(cfg.CleanupMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	rl := &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		rate:     rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:    cfg.BurstSize,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Stop ends the eviction loop.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.interval)
	for key, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if c, ok := rl.clients[key]; ok {
		c.lastSeen = time.Now()
		return c.limiter
	}
	c := &clientLimiter{
		limiter:  rate.NewLimiter(rl.rate, rl.burst),
		lastSeen: time.Now(),
	}
	rl.clients[key] = c
	return c.limiter
}

// healthCheckPaths are exempt from rate limiting
var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// Middleware returns an HTTP middleware that rate limits requests per client IP.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if healthCheckPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.limiterFor(realip.FromRequest(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "Too many requests. Please try again later.",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Middleware is a convenience wrapper: a no-op when disabled, otherwise a
// RateLimiter whose eviction loop runs for the process lifetime.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return New(cfg).Middleware()
}
