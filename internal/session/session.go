// Package session holds per-user verification state: a content-addressed set
// of uploaded source files and the contract candidates assembled from them.
//
// Sessions live in an external store (redis in production, in-memory for
// tests and development) and are serialized to JSON. The surrounding
// transport serializes access per session; the package itself takes no locks
// around a single session value.
package session

import (
	"errors"
	"sort"

	"github.com/jackromo888/sourcify/internal/contract"
)

// DefaultMaxBytes is the default cap on the total raw size of files held in
// one session.
const DefaultMaxBytes = 50 * 1024 * 1024

// ErrCapacityExceeded is returned when admitting a batch of files would push
// the session over its size cap. Nothing from the batch is admitted.
var ErrCapacityExceeded = errors.New("session file capacity exceeded")

// Session is the per-user state. Files is keyed by content hash and grows
// monotonically; candidates are merged into, never removed. The session as a
// whole is destroyed by reset or by the store's own expiry.
type Session struct {
	ID          string                         `json:"id"`
	Files       map[string]contract.File       `json:"files"`
	Candidates  map[string]*contract.Candidate `json:"candidates"`
	UnusedPaths []string                       `json:"unusedPaths"`

	// MaxBytes is set by the store on load/create and not serialized.
	MaxBytes int `json:"-"`
}

// New returns an empty session with the given id and cap.
func New(id string, maxBytes int) *Session {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Session{
		ID:         id,
		Files:      make(map[string]contract.File),
		Candidates: make(map[string]*contract.Candidate),
		MaxBytes:   maxBytes,
	}
}

// TotalSize returns the raw byte size of all files currently held.
func (s *Session) TotalSize() int {
	total := 0
	for _, f := range s.Files {
		total += f.Size()
	}
	return total
}

// AddFiles admits a batch of files, deduplicating by content hash. It returns
// the number of files that were actually new to the session. If admitting the
// new files would exceed the session cap, it returns ErrCapacityExceeded and
// admits nothing from the batch.
func (s *Session) AddFiles(files []contract.File) (int, error) {
	type keyed struct {
		hash string
		file contract.File
	}

	incoming := make([]keyed, 0, len(files))
	incomingSize := 0
	seen := make(map[string]bool)
	for _, f := range files {
		hash := contract.HashContent(f.Content)
		if _, ok := s.Files[hash]; ok {
			continue
		}
		if seen[hash] {
			continue
		}
		seen[hash] = true
		incoming = append(incoming, keyed{hash: hash, file: f})
		incomingSize += f.Size()
	}

	if s.TotalSize()+incomingSize > s.MaxBytes {
		return 0, ErrCapacityExceeded
	}

	for _, k := range incoming {
		s.Files[k.hash] = k.file
	}
	return len(incoming), nil
}

// SortedFiles returns the session's files ordered by path, then hash. The
// assembler wants a deterministic iteration order.
func (s *Session) SortedFiles() []contract.File {
	type keyed struct {
		hash string
		file contract.File
	}
	all := make([]keyed, 0, len(s.Files))
	for h, f := range s.Files {
		all = append(all, keyed{hash: h, file: f})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].file.Path != all[j].file.Path {
			return all[i].file.Path < all[j].file.Path
		}
		return all[i].hash < all[j].hash
	})
	out := make([]contract.File, len(all))
	for i, k := range all {
		out[i] = k.file
	}
	return out
}

// Candidate returns the candidate with the given id, or nil.
func (s *Session) Candidate(id string) *contract.Candidate {
	return s.Candidates[id]
}

// SortedCandidates returns the session's candidates ordered by id.
func (s *Session) SortedCandidates() []*contract.Candidate {
	ids := make([]string, 0, len(s.Candidates))
	for id := range s.Candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*contract.Candidate, len(ids))
	for i, id := range ids {
		out[i] = s.Candidates[id]
	}
	return out
}
