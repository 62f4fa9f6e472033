//go:build e2e

package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackromo888/sourcify/internal/contract"
	"github.com/jackromo888/sourcify/pkg/client"
)

const (
	tokenAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	tokenSource  = "pragma solidity ^0.8.0;\ncontract Token {}\n"
)

func TestSessionVerifyFlow(t *testing.T) {
	backend := &fakeBackend{}
	testServer, _ := startServer(t, backend)
	c := newClient(testServer)
	ctx := t.Context()

	metadata := buildMetadata("Token", "0.8.19+commit.7dd6d404", map[string]string{
		"contracts/Token.sol": tokenSource,
	})

	// Upload metadata and source together.
	result, err := c.UploadFiles(ctx, map[string]string{
		"metadata.json": metadata,
		"Token.sol":     tokenSource,
	})
	require.NoError(t, err, "Failed to upload files")
	require.Len(t, result.Contracts, 1, "Expected one candidate")

	cand := result.Contracts[0]
	assert.Equal(t, "Token", cand.Name)
	assert.Equal(t, contract.StatusPending, cand.Status)
	assert.Empty(t, cand.MissingSources)

	// Attach the deployment target; the fake backend answers "perfect".
	verified, err := c.VerifyContract(ctx, cand.ID, tokenAddress, "1")
	require.NoError(t, err, "Failed to verify")
	assert.Equal(t, contract.StatusPerfect, verified.Status)
	assert.Equal(t, tokenAddress, verified.Address)
	assert.Equal(t, "1", verified.ChainID)
	assert.NotEmpty(t, verified.StorageTimestamp)

	// Session data reflects the verified candidate.
	data, err := c.SessionData(ctx)
	require.NoError(t, err)
	require.Len(t, data.Contracts, 1)
	assert.Equal(t, contract.StatusPerfect, data.Contracts[0].Status)

	// The match is now visible to batch lookup.
	statuses, err := c.CheckByAddresses(ctx, []string{tokenAddress}, []string{"1"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, contract.StatusPerfect, statuses[0].Status)
	assert.Equal(t, []string{"1"}, statuses[0].ChainIDs)

	// Clearing the session leaves the stored match intact.
	require.NoError(t, c.ClearSession(ctx))

	data, err = c.SessionData(ctx)
	require.NoError(t, err)
	assert.Empty(t, data.Contracts)

	statuses, err = c.CheckByAddresses(ctx, []string{tokenAddress}, []string{"1"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, contract.StatusPerfect, statuses[0].Status)
}

func TestStoredMatchShortCircuit(t *testing.T) {
	backend := &fakeBackend{}
	testServer, _ := startServer(t, backend)
	ctx := t.Context()

	metadata := buildMetadata("Token", "0.8.19+commit.7dd6d404", map[string]string{
		"contracts/Token.sol": tokenSource,
	})
	files := map[string]string{"metadata.json": metadata, "Token.sol": tokenSource}

	first := newClient(testServer)
	result, err := first.UploadFiles(ctx, files)
	require.NoError(t, err)
	_, err = first.VerifyContract(ctx, result.Contracts[0].ID, tokenAddress, "1")
	require.NoError(t, err)
	require.Equal(t, 1, backend.requestCount())

	// A second session targeting the same pair adopts the stored match
	// without touching the backend.
	second := newClient(testServer)
	result, err = second.UploadFiles(ctx, files)
	require.NoError(t, err)
	verified, err := second.VerifyContract(ctx, result.Contracts[0].ID, tokenAddress, "1")
	require.NoError(t, err)
	assert.Equal(t, contract.StatusPerfect, verified.Status)
	assert.Equal(t, 1, backend.requestCount(), "Backend should not be called again")
}

func TestExtraFileInputRetry(t *testing.T) {
	backend := &fakeBackend{}
	backend.enqueue(contract.Verdict{Status: contract.StatusExtraFileInput})
	testServer, _ := startServer(t, backend)
	c := newClient(testServer)
	ctx := t.Context()

	helper := "pragma solidity ^0.8.0;\nlibrary Math {}\n"
	metadata := buildMetadata("Token", "0.8.19+commit.7dd6d404", map[string]string{
		"contracts/Token.sol": tokenSource,
	})

	// The helper file is not named by the metadata, so it starts out unused.
	result, err := c.UploadFiles(ctx, map[string]string{
		"metadata.json": metadata,
		"Token.sol":     tokenSource,
		"Math.sol":      helper,
	})
	require.NoError(t, err)
	require.Len(t, result.Contracts, 1)
	assert.Equal(t, []string{"Math.sol"}, result.UnusedPaths)

	// First attempt reports extra-file-input-bug; the retry with the full
	// source set succeeds.
	verified, err := c.VerifyContract(ctx, result.Contracts[0].ID, tokenAddress, "1")
	require.NoError(t, err)
	assert.Equal(t, contract.StatusPerfect, verified.Status)
	assert.Equal(t, 2, backend.requestCount(), "Expected one retry")
}

func TestStatelessVerify(t *testing.T) {
	backend := &fakeBackend{}
	testServer, _ := startServer(t, backend)
	c := newClient(testServer)
	ctx := t.Context()

	metadata := buildMetadata("Token", "0.8.19+commit.7dd6d404", map[string]string{
		"contracts/Token.sol": tokenSource,
	})

	verified, err := c.Verify(ctx, client.VerifyRequest{
		Address: tokenAddress,
		ChainID: "1",
		Files: map[string]string{
			"metadata.json": metadata,
			"Token.sol":     tokenSource,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contract.StatusPerfect, verified.Status)
}

func TestVerifyValidationErrors(t *testing.T) {
	backend := &fakeBackend{}
	testServer, _ := startServer(t, backend)
	c := newClient(testServer)
	ctx := t.Context()

	metadata := buildMetadata("Token", "0.8.19+commit.7dd6d404", map[string]string{
		"contracts/Token.sol": tokenSource,
	})
	result, err := c.UploadFiles(ctx, map[string]string{
		"metadata.json": metadata,
		"Token.sol":     tokenSource,
	})
	require.NoError(t, err)

	_, err = c.VerifyContract(ctx, result.Contracts[0].ID, "not-an-address", "1")
	assertHTTPError(t, err, "VALIDATION_FAILED")

	_, err = c.VerifyContract(ctx, result.Contracts[0].ID, tokenAddress, "eth")
	assertHTTPError(t, err, "VALIDATION_FAILED")

	_, err = c.VerifyContract(ctx, "0xdeadbeef", tokenAddress, "1")
	assertHTTPError(t, err, "NOT_FOUND")
}

func TestCheckByAddressesUnknown(t *testing.T) {
	backend := &fakeBackend{}
	testServer, _ := startServer(t, backend)
	c := newClient(testServer)

	statuses, err := c.CheckByAddresses(t.Context(), []string{tokenAddress}, []string{"1", "10"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, contract.StatusNoMatch, statuses[0].Status)
	assert.Empty(t, statuses[0].ChainIDs)
}
