package verifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackromo888/sourcify/internal/contract"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCandidate() *contract.Candidate {
	cand := contract.New("0xabc")
	cand.Name = "Token"
	cand.CompilerVersion = "0.8.28+commit.7893614a"
	cand.Address = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	cand.ChainID = "1"
	cand.Resolve("contracts/Token.sol", "contract Token {}")
	return cand
}

func TestVerify(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/verify", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]string{"status": "perfect"})
	}))
	defer srv.Close()

	client := New(srv.URL, testLogger())
	verdict, err := client.Verify(context.Background(), testCandidate())

	require.NoError(t, err)
	assert.Equal(t, contract.StatusPerfect, verdict.Status)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", got["address"])
	assert.Equal(t, "1", got["chainId"])
	assert.Equal(t, "0.8.28+commit.7893614a", got["compilerVersion"])

	sources, ok := got["sources"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "contract Token {}", sources["contracts/Token.sol"])
}

func TestVerifyPartialWithMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "partial",
			"message": "metadata hash mismatch",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, testLogger())
	verdict, err := client.Verify(context.Background(), testCandidate())

	require.NoError(t, err)
	assert.Equal(t, contract.StatusPartial, verdict.Status)
	assert.Equal(t, "metadata hash mismatch", verdict.Message)
}

func TestVerifyBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "COMPILATION_FAILED", "message": "pragma mismatch"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, testLogger())
	_, err := client.Verify(context.Background(), testCandidate())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMPILATION_FAILED")
}

func TestVerifyUnparseableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	client := New(srv.URL, testLogger())
	_, err := client.Verify(context.Background(), testCandidate())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestVerifyUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "maybe"})
	}))
	defer srv.Close()

	client := New(srv.URL, testLogger())
	_, err := client.Verify(context.Background(), testCandidate())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestVerifyConnectionRefused(t *testing.T) {
	client := New("http://127.0.0.1:1", testLogger())
	_, err := client.Verify(context.Background(), testCandidate())
	require.Error(t, err)
}
