//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jackromo888/sourcify/internal/config"
	"github.com/jackromo888/sourcify/internal/contract"
	"github.com/jackromo888/sourcify/internal/server"
	"github.com/jackromo888/sourcify/internal/session"
	"github.com/jackromo888/sourcify/internal/storage"
	"github.com/jackromo888/sourcify/pkg/client"
)

// fakeBackend stands in for the compiler verification service. Each queued
// verdict answers one /verify call; the default answer is "perfect".
type fakeBackend struct {
	mu       sync.Mutex
	queue    []contract.Verdict
	requests []map[string]any
}

func (b *fakeBackend) enqueue(v contract.Verdict) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, v)
}

func (b *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		b.requests = append(b.requests, req)
		verdict := contract.Verdict{Status: contract.StatusPerfect}
		if len(b.queue) > 0 {
			verdict = b.queue[0]
			b.queue = b.queue[1:]
		}
		b.mu.Unlock()

		json.NewEncoder(w).Encode(verdict)
	})
}

func (b *fakeBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// startServer starts the sourcify server in-process against a temp sqlite
// database, a memory session store and the fake backend.
func startServer(t *testing.T, backend *fakeBackend) (*httptest.Server, storage.Store) {
	t.Helper()

	backendServer := httptest.NewServer(backend.handler())
	t.Cleanup(backendServer.Close)

	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "sourcify.db")},
		},
		Verifier:  config.VerifierConfig{URL: backendServer.URL, TimeoutSeconds: 10},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{MaxBodySizeMB: 50},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := storage.New(cfg.Storage, logger)
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(t.Context()), "Failed to run migrations")

	sessions := session.NewMemoryStore(session.Options{})

	srv, err := server.New(cfg, store, sessions, logger)
	require.NoError(t, err, "Failed to create server")

	testServer := httptest.NewServer(srv.Handler())
	t.Cleanup(testServer.Close)

	return testServer, store
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server) *client.Client {
	return client.New(testServer.URL)
}

// buildMetadata produces a Solidity metadata file whose sources reference the
// given contents by their real keccak256 hashes.
func buildMetadata(contractName, compilerVersion string, sources map[string]string) string {
	srcs := make(map[string]any, len(sources))
	target := ""
	for path, content := range sources {
		srcs[path] = map[string]any{
			"keccak256": contract.HashContent([]byte(content)),
		}
		if target == "" {
			target = path
		}
	}

	meta := map[string]any{
		"compiler": map[string]string{"version": compilerVersion},
		"settings": map[string]any{
			"compilationTarget": map[string]string{target: contractName},
		},
		"sources": srcs,
	}

	data, err := json.Marshal(meta)
	if err != nil {
		panic(fmt.Sprintf("marshaling metadata: %v", err))
	}
	return string(data)
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
