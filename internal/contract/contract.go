// Package contract defines the contract candidate, the unit of verification
// work assembled from uploaded source files and compiler metadata.
package contract

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// Candidate statuses. A candidate starts as pending and is overwritten by the
// outcome of each verification attempt. StatusNoMatch is only assigned by
// batch address lookups, never by the orchestrator.
const (
	StatusPending        = "pending"
	StatusPerfect        = "perfect"
	StatusPartial        = "partial"
	StatusExtraFileInput = "extra-file-input-bug"
	StatusError          = "error"
	StatusNoMatch        = "false"
)

// File is a raw uploaded source file. Identity for deduplication is the
// keccak256 hash of Content; Path is only the name the uploader gave it.
type File struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// Size returns the raw byte length counted against the session cap.
func (f File) Size() int {
	return len(f.Content)
}

// HashContent returns the 0x-prefixed keccak256 hex digest of content. This
// is the same digest format Solidity metadata uses for its source hashes.
func HashContent(content []byte) string {
	return "0x" + hex.EncodeToString(crypto.Keccak256(content))
}

// DeriveID derives a candidate id from raw metadata content. Resubmitting the
// same metadata always resolves to the same candidate, which is what makes
// incremental merge across uploads possible.
func DeriveID(metadata []byte) string {
	return HashContent(metadata)
}

// Candidate is a contract candidate under assembly and verification.
//
// ResolvedSources and MissingSources are always disjoint and their union never
// shrinks: a path moves from missing to resolved exactly when a file with the
// expected content arrives, and never moves back. InvalidSources is the subset
// of missing paths for which a file was supplied but failed the hash check.
type Candidate struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	CompilerVersion  string            `json:"compilerVersion"`
	ResolvedSources  map[string]string `json:"resolvedSources"`  // path -> content
	MissingSources   map[string]string `json:"missingSources"`   // path -> expected keccak256
	InvalidSources   map[string]string `json:"invalidSources"`   // path -> reason
	Address          string            `json:"address,omitempty"`
	ChainID          string            `json:"chainId,omitempty"`
	Status           string            `json:"status"`
	StatusMessage    string            `json:"statusMessage,omitempty"`
	StorageTimestamp string            `json:"storageTimestamp,omitempty"`
}

// New returns an empty pending candidate with the given id.
func New(id string) *Candidate {
	return &Candidate{
		ID:              id,
		ResolvedSources: make(map[string]string),
		MissingSources:  make(map[string]string),
		InvalidSources:  make(map[string]string),
		Status:          StatusPending,
	}
}

// Complete reports whether every source the metadata names has been resolved
// with matching content.
func (c *Candidate) Complete() bool {
	return len(c.MissingSources) == 0 && len(c.InvalidSources) == 0
}

// Verifiable reports whether the candidate has enough information to attempt
// verification: complete sources, a target address and chain, and a compiler
// version.
func (c *Candidate) Verifiable() bool {
	return c.Complete() && c.Address != "" && c.ChainID != "" && c.CompilerVersion != ""
}

// Resolve records content for a source path, moving it out of the missing and
// invalid sets.
func (c *Candidate) Resolve(path, content string) {
	c.ResolvedSources[path] = content
	delete(c.MissingSources, path)
	delete(c.InvalidSources, path)
}

// Merge folds a freshly assembled candidate with the same id into c. Paths
// resolved by either pass stay resolved; a path is missing afterwards only if
// neither pass resolved it. Name and compiler version are taken from the new
// pass when it has them. Identity and verification target are never touched.
func (c *Candidate) Merge(newer *Candidate) {
	for path, content := range newer.ResolvedSources {
		c.Resolve(path, content)
	}
	for path, hash := range newer.MissingSources {
		if _, ok := c.ResolvedSources[path]; !ok {
			c.MissingSources[path] = hash
		}
	}
	for path, reason := range newer.InvalidSources {
		if _, ok := c.ResolvedSources[path]; !ok {
			c.InvalidSources[path] = reason
		}
	}
	if newer.Name != "" {
		c.Name = newer.Name
	}
	if newer.CompilerVersion != "" {
		c.CompilerVersion = newer.CompilerVersion
	}
}

// Verdict is the outcome of one verification attempt against a compiler
// backend. Status is one of the candidate status constants.
type Verdict struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Clone returns a deep copy. The orchestrator uses it to build the expanded
// source set for a retry without mutating the session's candidate.
func (c *Candidate) Clone() *Candidate {
	cp := *c
	cp.ResolvedSources = make(map[string]string, len(c.ResolvedSources))
	for k, v := range c.ResolvedSources {
		cp.ResolvedSources[k] = v
	}
	cp.MissingSources = make(map[string]string, len(c.MissingSources))
	for k, v := range c.MissingSources {
		cp.MissingSources[k] = v
	}
	cp.InvalidSources = make(map[string]string, len(c.InvalidSources))
	for k, v := range c.InvalidSources {
		cp.InvalidSources[k] = v
	}
	return &cp
}
