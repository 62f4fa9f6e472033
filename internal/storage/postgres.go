package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Confirmed verification results
	CREATE TABLE IF NOT EXISTS matches (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		address TEXT NOT NULL,
		chain_id TEXT NOT NULL,
		status TEXT NOT NULL,
		contract_name TEXT,
		compiler_version TEXT,
		message TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW(),
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
func (s *PostgresStore) StoreMatch(ctx context.Context, m *Match) error {
	if m.ID == "" {
		m.ID = generateID()
	}
	query := `
		INSERT INTO matches (id, address, chain_id, status, contract_name, compiler_version, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(address, chain_id) DO UPDATE SET
			status = EXCLUDED.status,
			contract_name = EXCLUDED.contract_name,
			compiler_version = EXCLUDED.compiler_version,
			message = EXCLUDED.message,
			created_at = NOW()
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
func (s *PostgresStore) GetMatches(ctx context.Context, address, chainID string) ([]Match, error) {
	query := `
		SELECT id, address, chain_id, status, contract_name, compiler_version, message, created_at::TEXT
		FROM matches
		WHERE address = $1
	`
	args := []any{address}
	if chainID != "" {
		query += " AND chain_id = $2"
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
func (s *PostgresStore) ListMatches(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, address, chain_id, status, contract_name, compiler_version, message, created_at::TEXT
		FROM matches
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// DeleteMatch removes the stored match for an (address, chainId) pair.
func (s *PostgresStore) DeleteMatch(ctx context.Context, address, chainID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM matches WHERE address = $1 AND chain_id = $2", address, chainID)
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
