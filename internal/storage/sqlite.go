package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Confirmed verification results
	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		chain_id TEXT NOT NULL,
		status TEXT NOT NULL,
		contract_name TEXT,
		compiler_version TEXT,
		message TEXT,
		created_at TEXT DEFAULT (datetime('now')),
		UNIQUE(address, chain_id)
	);

	CREATE INDEX IF NOT EXISTS idx_matches_address ON matches(address);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// StoreMatch records a confirmed match, replacing any previous result for the
// same (address, chainId) pair.
func (s *SQLiteStore) StoreMatch(ctx context.Context, m *Match) error {
	if m.ID == "" {
		m.ID = generateID()
	}
	query := `
		INSERT INTO matches (id, address, chain_id, status, contract_name, compiler_version, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address, chain_id) DO UPDATE SET
			status = excluded.status,
			contract_name = excluded.contract_name,
			compiler_version = excluded.compiler_version,
			message = excluded.message,
			created_at = datetime('now')
	`
	if _, err := s.db.ExecContext(ctx, query,
		m.ID, m.Address, m.ChainID, m.Status, m.ContractName, m.CompilerVersion, m.Message,
	); err != nil {
		return fmt.Errorf("storing match: %w", err)
	}
	return nil
}

// GetMatches returns confirmed matches for an address, optionally narrowed to
// one chain.
func (s *SQLiteStore) GetMatches(ctx context.Context, address, chainID string) ([]Match, error) {
	query := `
		SELECT id, address, chain_id, status, contract_name, compiler_version, message, created_at
		FROM matches
		WHERE address = ?
	`
	args := []any{address}
	if chainID != "" {
		query += " AND chain_id = ?"
		args = append(args, chainID)
	}
	query += " ORDER BY chain_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// ListMatches returns the most recent matches, newest first.
func (s *SQLiteStore) ListMatches(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, address, chain_id, status, contract_name, compiler_version, message, created_at
		FROM matches
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// DeleteMatch removes the stored match for an (address, chainId) pair.
func (s *SQLiteStore) DeleteMatch(ctx context.Context, address, chainID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM matches WHERE address = ? AND chain_id = ?", address, chainID)
	if err != nil {
		return fmt.Errorf("deleting match: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMatches(rows *sql.Rows) ([]Match, error) {
	var matches []Match
	for rows.Next() {
		var m Match
		var contractName, compilerVersion, message, createdAt sql.NullString
		if err := rows.Scan(&m.ID, &m.Address, &m.ChainID, &m.Status,
			&contractName, &compilerVersion, &message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.ContractName = contractName.String
		m.CompilerVersion = compilerVersion.String
		m.Message = message.String
		m.CreatedAt = createdAt.String
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
