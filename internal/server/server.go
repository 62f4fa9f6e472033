// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jackromo888/sourcify/internal/chains"
	"github.com/jackromo888/sourcify/internal/checker"
	"github.com/jackromo888/sourcify/internal/config"
	"github.com/jackromo888/sourcify/internal/fetcher"
	"github.com/jackromo888/sourcify/internal/middleware/logging"
	"github.com/jackromo888/sourcify/internal/middleware/ratelimit"
	"github.com/jackromo888/sourcify/internal/middleware/realip"
	"github.com/jackromo888/sourcify/internal/middleware/security"
	"github.com/jackromo888/sourcify/internal/observability/metrics"
	"github.com/jackromo888/sourcify/internal/session"
	"github.com/jackromo888/sourcify/internal/storage"
	"github.com/jackromo888/sourcify/internal/verifier"

	verificationDomain "github.com/jackromo888/sourcify/internal/verification/domain"
	verificationTransport "github.com/jackromo888/sourcify/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg      *config.Config
	store    storage.Store
	sessions session.Store
	logger   *slog.Logger
	router   *chi.Mux
	registry *chains.Registry

	verificationSvc verificationTransport.Service
}

// New creates a new server
func New(cfg *config.Config, store storage.Store, sessions session.Store, logger *slog.Logger) (*Server, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		logger:   logger,
		router:   chi.NewRouter(),
		registry: registry,
	}

	check := checker.New(logger)
	fetch := fetcher.New(cfg.Fetcher.Gateways,
		time.Duration(cfg.Fetcher.TimeoutSeconds)*time.Second, logger)
	verify := verifier.New(cfg.Verifier.URL, logger,
		verifier.WithTimeout(time.Duration(cfg.Verifier.TimeoutSeconds)*time.Second))

	svcImpl := verificationDomain.NewService(sessions, check, fetch, verify, store, registry, logger)
	s.verificationSvc = verificationDomain.LoggingMiddleware(logger)(svcImpl)

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func buildRegistry(cfg *config.Config) (*chains.Registry, error) {
	if cfg.Chains.File == "" {
		// No chains file: every chain id is accepted
		return chains.NewRegistry(), nil
	}
	registry, err := chains.LoadFile(cfg.Chains.File)
	if err != nil {
		return nil, fmt.Errorf("loading chains file: %w", err)
	}
	return registry, nil
}

func (s *Server) setupMiddleware() {
	// Order matters: client IP resolution first, request limits before any
	// body is read.
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeMB))

	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// CORS: credentials are required because the session rides on a cookie,
	// so the origin is echoed instead of wildcarded.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	s.router.Get("/chains", s.handleChains)
	s.router.Handle("/metrics", metrics.Handler())

	verificationTransport.NewHandler(s.verificationSvc).RegisterRoutes(s.router)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChains lists the chains the server verifies against.
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
