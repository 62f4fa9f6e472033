// Package chains holds the registry of chains verification requests may
// target.
package chains

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Chain describes one supported chain.
type Chain struct {
	ID   int64  `toml:"id" json:"chainId"`
	Name string `toml:"name" json:"name"`
}

// Registry is the set of supported chains. An empty registry places no
// restriction on chain ids; a populated one rejects targets outside it.
type Registry struct {
	byID map[string]Chain
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Chain)}
}

// Register adds a chain to the registry.
func (r *Registry) Register(c Chain) {
	r.byID[strconv.FormatInt(c.ID, 10)] = c
}

// Get returns the chain for a decimal chain id.
func (r *Registry) Get(chainID string) (Chain, bool) {
	c, ok := r.byID[chainID]
	return c, ok
}

// Supported reports whether verification may target the chain id.
func (r *Registry) Supported(chainID string) bool {
	if len(r.byID) == 0 {
		return true
	}
	_, ok := r.byID[chainID]
	return ok
}

// List returns the registered chains ordered by id.
func (r *Registry) List() []Chain {
	out := make([]Chain, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type chainsFile struct {
	Chains []Chain `toml:"chains"`
}

// LoadFile loads a registry from a TOML file of [[chains]] entries.
func LoadFile(path string) (*Registry, error) {
	var f chainsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decoding chains file: %w", err)
	}

	r := NewRegistry()
	for _, c := range f.Chains {
		if c.ID <= 0 {
			return nil, fmt.Errorf("chains file: invalid chain id %d", c.ID)
		}
		r.Register(c)
	}
	return r, nil
}
