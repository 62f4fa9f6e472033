// Package checker resolves uploaded files into contract candidates.
//
// A Solidity metadata file names every source of its compilation unit along
// with the keccak256 hash of its content. The checker finds metadata files
// among the uploads, matches the remaining files against those hashes, and
// produces one candidate per metadata with its sources partitioned into
// resolved, missing and invalid.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/jackromo888/sourcify/internal/contract"
)

// ErrMalformedMetadata is returned when a file presents itself as compiler
// metadata but cannot be used. The whole batch is rejected so that no
// candidate is partially updated from bad input.
var ErrMalformedMetadata = errors.New("malformed compiler metadata")

// Checker implements candidate resolution from raw files.
type Checker struct {
	logger *slog.Logger
}

// New creates a checker.
func New(logger *slog.Logger) *Checker {
	return &Checker{logger: logger}
}

type metadataSource struct {
	Keccak256 string   `json:"keccak256"`
	Content   string   `json:"content"`
	URLs      []string `json:"urls"`
}

type solcMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
	Sources map[string]metadataSource `json:"sources"`
}

// isMetadata reports whether content parses as a Solidity metadata file.
func isMetadata(content []byte) (*solcMetadata, bool) {
	var m solcMetadata
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, false
	}
	if len(m.Sources) == 0 || m.Compiler.Version == "" {
		return nil, false
	}
	return &m, true
}

// contentVariations returns the content forms accepted for a source file.
// Editors and git commonly add or strip a trailing newline or rewrite line
// endings, and the file is still the source the metadata meant.
func contentVariations(content []byte) [][]byte {
	s := string(content)
	variations := []string{
		s,
		strings.TrimRight(s, "\n"),
		strings.TrimRight(s, "\r\n"),
		s + "\n",
		strings.ReplaceAll(s, "\r\n", "\n"),
	}

	seen := make(map[string]bool, len(variations))
	out := make([][]byte, 0, len(variations))
	for _, v := range variations {
		if !seen[v] {
			seen[v] = true
			out = append(out, []byte(v))
		}
	}
	return out
}

// CheckFiles turns a batch of files into contract candidates. The returned
// paths are the files that could not be attributed to any candidate. An error
// means the batch was structurally unusable and nothing should be merged.
func (c *Checker) CheckFiles(ctx context.Context, files []contract.File) ([]*contract.Candidate, []string, error) {
	// Index every accepted content variation of every file by hash.
	byHash := make(map[string]string)
	hashesOf := make([][]string, len(files))
	for i, f := range files {
		for _, v := range contentVariations(f.Content) {
			h := contract.HashContent(v)
			hashesOf[i] = append(hashesOf[i], h)
			if _, ok := byHash[h]; !ok {
				byHash[h] = string(v)
			}
		}
	}

	used := make([]bool, len(files))
	var candidates []*contract.Candidate

	for i, f := range files {
		meta, ok := isMetadata(f.Content)
		if !ok {
			continue
		}
		used[i] = true

		cand := contract.New(contract.DeriveID(f.Content))
		cand.CompilerVersion = meta.Compiler.Version
		cand.Name = compilationTargetName(meta)

		for srcPath, src := range meta.Sources {
			switch {
			case src.Content != "":
				cand.Resolve(srcPath, src.Content)
			case src.Keccak256 == "":
				return nil, nil, fmt.Errorf("%w: source %q has neither content nor keccak256", ErrMalformedMetadata, srcPath)
			default:
				if content, ok := byHash[src.Keccak256]; ok {
					cand.Resolve(srcPath, content)
					markUsed(files, hashesOf, used, src.Keccak256)
					continue
				}
				cand.MissingSources[srcPath] = src.Keccak256
				if j := findByName(files, srcPath); j >= 0 {
					cand.InvalidSources[srcPath] = fmt.Sprintf("content of %s does not match expected keccak256 hash", files[j].Path)
					used[j] = true
				}
			}
		}

		candidates = append(candidates, cand)
	}

	var unused []string
	for i, f := range files {
		if !used[i] {
			unused = append(unused, f.Path)
		}
	}
	sort.Strings(unused)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	if c.logger != nil {
		c.logger.Debug("checked files",
			"files", len(files),
			"candidates", len(candidates),
			"unused", len(unused),
		)
	}
	return candidates, unused, nil
}

// ExpandWithAllSources returns a copy of the candidate with every
// non-metadata session file added to its resolved set. Used when the
// verifier reports that the minimal source set was not enough to reproduce
// the compilation.
func (c *Checker) ExpandWithAllSources(cand *contract.Candidate, files []contract.File) *contract.Candidate {
	expanded := cand.Clone()

	have := make(map[string]bool, len(expanded.ResolvedSources))
	for _, content := range expanded.ResolvedSources {
		have[contract.HashContent([]byte(content))] = true
	}

	for _, f := range files {
		if _, ok := isMetadata(f.Content); ok {
			continue
		}
		if have[contract.HashContent(f.Content)] {
			continue
		}
		if _, ok := expanded.ResolvedSources[f.Path]; ok {
			continue
		}
		expanded.Resolve(f.Path, string(f.Content))
	}
	return expanded
}

// compilationTargetName picks the contract name from the metadata's
// compilation target. Sorted for determinism when multiple are present.
func compilationTargetName(meta *solcMetadata) string {
	if len(meta.Settings.CompilationTarget) == 0 {
		return ""
	}
	paths := make([]string, 0, len(meta.Settings.CompilationTarget))
	for p := range meta.Settings.CompilationTarget {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return meta.Settings.CompilationTarget[paths[0]]
}

// markUsed flags every file that carries the given content hash.
func markUsed(files []contract.File, hashesOf [][]string, used []bool, hash string) {
	for i := range files {
		if used[i] {
			continue
		}
		for _, h := range hashesOf[i] {
			if h == hash {
				used[i] = true
				break
			}
		}
	}
}

// findByName locates an uploaded file that looks like the named source but
// was not matched by hash.
func findByName(files []contract.File, srcPath string) int {
	for i, f := range files {
		if f.Path == srcPath {
			return i
		}
	}
	base := path.Base(srcPath)
	for i, f := range files {
		if _, ok := isMetadata(f.Content); ok {
			continue
		}
		if path.Base(f.Path) == base {
			return i
		}
	}
	return -1
}
