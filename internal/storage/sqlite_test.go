package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"log/slog"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "sourcify-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	dbPath := filepath.Join(tmpDir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewSQLiteStore(dbPath, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("StoreAndGetMatch", func(t *testing.T) {
		m := &Match{
			Address:         "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			ChainID:         "1",
			Status:          "perfect",
			ContractName:    "Token",
			CompilerVersion: "0.8.28+commit.7893614a",
		}

		if err := store.StoreMatch(ctx, m); err != nil {
			t.Fatalf("StoreMatch() error = %v", err)
		}
		if m.ID == "" {
			t.Error("StoreMatch() did not assign an ID")
		}

		got, err := store.GetMatches(ctx, m.Address, "1")
		if err != nil {
			t.Fatalf("GetMatches() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("GetMatches() returned %d matches, want 1", len(got))
		}
		if got[0].Status != "perfect" {
			t.Errorf("GetMatches().Status = %v, want perfect", got[0].Status)
		}
		if got[0].ContractName != "Token" {
			t.Errorf("GetMatches().ContractName = %v, want Token", got[0].ContractName)
		}
		if got[0].CreatedAt == "" {
			t.Error("GetMatches().CreatedAt is empty")
		}
	})

	t.Run("UpsertReplacesStatus", func(t *testing.T) {
		m := &Match{
			Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			ChainID: "1",
			Status:  "partial",
			Message: "metadata hash mismatch",
		}
		if err := store.StoreMatch(ctx, m); err != nil {
			t.Fatalf("StoreMatch() error = %v", err)
		}

		got, err := store.GetMatches(ctx, m.Address, "1")
		if err != nil {
			t.Fatalf("GetMatches() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("GetMatches() returned %d matches after upsert, want 1", len(got))
		}
		if got[0].Status != "partial" {
			t.Errorf("GetMatches().Status = %v, want partial", got[0].Status)
		}
		if got[0].Message != "metadata hash mismatch" {
			t.Errorf("GetMatches().Message = %v, want metadata hash mismatch", got[0].Message)
		}
	})

	t.Run("GetMatchesAllChains", func(t *testing.T) {
		m := &Match{
			Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			ChainID: "11155111",
			Status:  "perfect",
		}
		if err := store.StoreMatch(ctx, m); err != nil {
			t.Fatalf("StoreMatch() error = %v", err)
		}

		got, err := store.GetMatches(ctx, m.Address, "")
		if err != nil {
			t.Fatalf("GetMatches() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("GetMatches(all chains) returned %d matches, want 2", len(got))
		}
		// Ordered by chain_id
		if got[0].ChainID != "1" || got[1].ChainID != "11155111" {
			t.Errorf("GetMatches() chain order = [%v, %v], want [1, 11155111]", got[0].ChainID, got[1].ChainID)
		}
	})

	t.Run("GetMatchesUnknownAddress", func(t *testing.T) {
		got, err := store.GetMatches(ctx, "0x0000000000000000000000000000000000000001", "")
		if err != nil {
			t.Fatalf("GetMatches() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("GetMatches(unknown) returned %d matches, want 0", len(got))
		}
	})

	t.Run("ListMatches", func(t *testing.T) {
		got, err := store.ListMatches(ctx, 10)
		if err != nil {
			t.Fatalf("ListMatches() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("ListMatches() returned %d matches, want 2", len(got))
		}

		got, err = store.ListMatches(ctx, 1)
		if err != nil {
			t.Fatalf("ListMatches() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("ListMatches(limit=1) returned %d matches, want 1", len(got))
		}
	})

	t.Run("DeleteMatch", func(t *testing.T) {
		if err := store.DeleteMatch(ctx, "0x5FbDB2315678afecb367f032d93F642f64180aa3", "11155111"); err != nil {
			t.Fatalf("DeleteMatch() error = %v", err)
		}

		got, err := store.GetMatches(ctx, "0x5FbDB2315678afecb367f032d93F642f64180aa3", "11155111")
		if err != nil {
			t.Fatalf("GetMatches() error = %v", err)
		}
		if len(got) != 0 {
			t.Error("match still present after deletion")
		}
	})

	t.Run("DeleteMatchNotFound", func(t *testing.T) {
		err := store.DeleteMatch(ctx, "0x0000000000000000000000000000000000000001", "1")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteMatch() error = %v, want ErrNotFound", err)
		}
	})
}
