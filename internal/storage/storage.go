// Package storage persists confirmed verification results.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackromo888/sourcify/internal/config"
)

// MatchStore handles confirmed match operations
type MatchStore interface {
	// StoreMatch records a confirmed match, replacing any previous result for
	// the same (address, chainId) pair.
	StoreMatch(ctx context.Context, m *Match) error

	// GetMatches returns confirmed matches for an address. An empty chainID
	// returns matches on every chain.
	GetMatches(ctx context.Context, address, chainID string) ([]Match, error)

	// ListMatches returns the most recent matches, newest first.
	ListMatches(ctx context.Context, limit int) ([]Match, error)

	// DeleteMatch removes the stored match for an (address, chainId) pair.
	DeleteMatch(ctx context.Context, address, chainID string) error
}

// Store combines the match store with lifecycle methods.
type Store interface {
	MatchStore

	Close() error
	Migrate(ctx context.Context) error
}

// Match is a confirmed verification result for one (address, chainId) pair.
type Match struct {
	ID              string
	Address         string // EIP-55 checksummed
	ChainID         string
	Status          string // "perfect" or "partial"
	ContractName    string
	CompilerVersion string
	Message         string
	CreatedAt       string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
