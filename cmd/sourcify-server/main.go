package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackromo888/sourcify/internal/config"
	"github.com/jackromo888/sourcify/internal/observability/metrics"
	"github.com/jackromo888/sourcify/internal/server"
	"github.com/jackromo888/sourcify/internal/session"
	"github.com/jackromo888/sourcify/internal/storage"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "sourcify-server",
		Short:   "Sourcify server - smart contract source verification",
		Version: version,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMatchesCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newMatchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matches",
		Short: "Inspect stored verification matches",
	}

	cmd.AddCommand(newMatchesListCmd())
	cmd.AddCommand(newMatchesPurgeCmd())

	return cmd
}

func newMatchesListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored matches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatchesList(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum matches to list")

	return cmd
}

func newMatchesPurgeCmd() *cobra.Command {
	var address string
	var chainID string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete the stored match for an address on a chain",
		Long: `Delete a stored verification match.

Use 'sourcify-server matches list' to find the address and chain ID.

EXAMPLES:
  sourcify-server matches purge --address 0x5FbDB2315678afecb367f032d93F642f64180aa3 --chain-id 1
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatchesPurge(address, chainID)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "contract address (required)")
	cmd.Flags().StringVar(&chainID, "chain-id", "", "chain ID (required)")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("chain-id")

	return cmd
}

// Match management commands

func openStore() (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.New(cfg.Storage, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	// Ensure migrations are run
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func runMatchesList(limit int) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	matches, err := store.ListMatches(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("listing matches: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("No matches stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tCHAIN\tSTATUS\tCONTRACT\tCOMPILER\tCREATED")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Address, m.ChainID, m.Status, m.ContractName, m.CompilerVersion, m.CreatedAt)
	}
	w.Flush()

	return nil
}

func runMatchesPurge(address, chainID string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteMatch(context.Background(), address, chainID); err != nil {
		return fmt.Errorf("deleting match: %w", err)
	}

	fmt.Printf("Match deleted: %s on chain %s\n", address, chainID)
	return nil
}

// Server command

func runServe() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg)
	logger.Info("starting sourcify-server", "version", version)

	metrics.Init(cfg.Metrics.Enabled, "sourcify")

	// Initialize match storage
	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	// Run migrations
	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Initialize session storage
	sessions, err := buildSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing session store: %w", err)
	}

	// Create server
	srv, err := server.New(cfg, store, sessions, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Create HTTP server with configurable timeouts
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	opts := session.Options{
		MaxBytes: cfg.Session.MaxSizeMB * 1024 * 1024,
		TTL:      time.Duration(cfg.Session.TTLMinutes) * time.Minute,
	}

	switch cfg.Session.StoreType {
	case "redis":
		return session.NewRedisStore(cfg.Session.Redis.Addr, cfg.Session.Redis.Password, cfg.Session.Redis.DB, opts)
	case "memory", "":
		return session.NewMemoryStore(opts), nil
	default:
		return nil, fmt.Errorf("unknown session store type: %s", cfg.Session.StoreType)
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
