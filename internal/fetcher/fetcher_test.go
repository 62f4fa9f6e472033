package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackromo888/sourcify/internal/contract"
)

const helperSource = "pragma solidity ^0.8.0;\ncontract Helper {}\n"

func newCandidate(missing map[string]string) *contract.Candidate {
	c := contract.New("0xid")
	for path, hash := range missing {
		c.MissingSources[path] = hash
	}
	return c
}

func TestFetchMissing_ResolvesVerifiedContent(t *testing.T) {
	hash := contract.HashContent([]byte(helperSource))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+strings.TrimPrefix(hash, "0x") {
			w.Write([]byte(helperSource))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New([]string{srv.URL}, time.Second, nil)
	cand := newCandidate(map[string]string{"lib/Helper.sol": hash})

	err := f.FetchMissing(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, helperSource, cand.ResolvedSources["lib/Helper.sol"])
	assert.Empty(t, cand.MissingSources)
}

func TestFetchMissing_RejectsWrongContent(t *testing.T) {
	hash := contract.HashContent([]byte(helperSource))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not the expected content"))
	}))
	defer srv.Close()

	f := New([]string{srv.URL}, time.Second, nil)
	cand := newCandidate(map[string]string{"lib/Helper.sol": hash})

	err := f.FetchMissing(context.Background(), cand)
	assert.Error(t, err)
	assert.Empty(t, cand.ResolvedSources)
	assert.Contains(t, cand.MissingSources, "lib/Helper.sol")
}

func TestFetchMissing_FallsBackToSecondGateway(t *testing.T) {
	hash := contract.HashContent([]byte(helperSource))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(helperSource))
	}))
	defer good.Close()

	f := New([]string{bad.URL, good.URL}, time.Second, nil)
	cand := newCandidate(map[string]string{"lib/Helper.sol": hash})

	err := f.FetchMissing(context.Background(), cand)
	require.NoError(t, err)
	assert.Contains(t, cand.ResolvedSources, "lib/Helper.sol")
}

func TestFetchMissing_NoGatewaysIsNoop(t *testing.T) {
	f := New(nil, time.Second, nil)
	cand := newCandidate(map[string]string{"lib/Helper.sol": "0xabc"})

	require.NoError(t, f.FetchMissing(context.Background(), cand))
	assert.Contains(t, cand.MissingSources, "lib/Helper.sol")
}
