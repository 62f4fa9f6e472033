// Package domain contains the business logic for source verification: file
// admission, candidate assembly and merge, and the verification state machine.
package domain

import (
	"context"
	"errors"

	"github.com/jackromo888/sourcify/internal/contract"
	"github.com/jackromo888/sourcify/internal/storage"
)

// Common errors returned by the verification service.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrCandidateNotFound = errors.New("contract candidate not found")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidChainID    = errors.New("invalid chain ID")
	ErrChainNotFound     = errors.New("chain not supported")
	ErrChoiceRequired    = errors.New("multiple candidates detected, contract choice required")
	ErrNoFiles           = errors.New("no usable files supplied")
)

// FileChecker resolves raw files into contract candidates.
type FileChecker interface {
	CheckFiles(ctx context.Context, files []contract.File) ([]*contract.Candidate, []string, error)
	ExpandWithAllSources(cand *contract.Candidate, files []contract.File) *contract.Candidate
}

// SourceFetcher resolves still-missing sources from external registries,
// best-effort.
type SourceFetcher interface {
	FetchMissing(ctx context.Context, cand *contract.Candidate) error
}

// BackendVerifier recompiles a candidate and compares it against on-chain
// bytecode.
type BackendVerifier interface {
	Verify(ctx context.Context, cand *contract.Candidate) (*contract.Verdict, error)
}

// MatchStore defines the storage operations needed by the verification domain.
type MatchStore interface {
	StoreMatch(ctx context.Context, m *storage.Match) error
	GetMatches(ctx context.Context, address, chainID string) ([]storage.Match, error)
}

// UploadResult reports the effect of one file upload on a session.
type UploadResult struct {
	NewFiles    int                   `json:"newFiles"`
	Candidates  []*contract.Candidate `json:"contracts"`
	UnusedPaths []string              `json:"unused"`
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	Candidates  []*contract.Candidate `json:"contracts"`
	UnusedPaths []string              `json:"unused"`
	Files       []string              `json:"files"`
}

// TargetRequest attaches a verification target to a candidate. An empty
// ContractID is accepted when the session holds exactly one candidate.
type TargetRequest struct {
	ContractID string `json:"contractId"`
	Address    string `json:"address"`
	ChainID    string `json:"chainId"`
}

// AddressStatus is the batch lookup result for one address across the
// requested chains. Status is "perfect", "partial" or "false".
type AddressStatus struct {
	Address  string   `json:"address"`
	Status   string   `json:"status"`
	ChainIDs []string `json:"chainIds,omitempty"`
}
