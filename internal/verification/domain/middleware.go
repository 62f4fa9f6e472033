package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackromo888/sourcify/internal/contract"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	CreateSession(ctx context.Context) (string, error)
	UploadFiles(ctx context.Context, sessionID string, files []contract.File) (*UploadResult, error)
	AttachTargetAndVerify(ctx context.Context, sessionID string, req TargetRequest) (*contract.Candidate, error)
	Verify(ctx context.Context, files []contract.File, req TargetRequest) (*contract.Candidate, error)
	Snapshot(ctx context.Context, sessionID string) (*Snapshot, error)
	Reset(ctx context.Context, sessionID string) error
	BatchStatus(ctx context.Context, addresses, chainIDs []string) []AddressStatus
}

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func (m *loggingMiddleware) CreateSession(ctx context.Context) (string, error) {
	id, err := m.next.CreateSession(ctx)
	m.logger.Debug("CreateSession", "session", id, "error", err)
	return id, err
}

func (m *loggingMiddleware) UploadFiles(ctx context.Context, sessionID string, files []contract.File) (*UploadResult, error) {
	start := time.Now()
	result, err := m.next.UploadFiles(ctx, sessionID, files)
	m.logger.Info("UploadFiles",
		"session", sessionID,
		"files", len(files),
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

func (m *loggingMiddleware) AttachTargetAndVerify(ctx context.Context, sessionID string, req TargetRequest) (*contract.Candidate, error) {
	start := time.Now()
	cand, err := m.next.AttachTargetAndVerify(ctx, sessionID, req)
	status := ""
	if cand != nil {
		status = cand.Status
	}
	m.logger.Info("AttachTargetAndVerify",
		"session", sessionID,
		"contract", req.ContractID,
		"address", req.Address,
		"chainId", req.ChainID,
		"status", status,
		"duration", time.Since(start),
		"error", err,
	)
	return cand, err
}

func (m *loggingMiddleware) Verify(ctx context.Context, files []contract.File, req TargetRequest) (*contract.Candidate, error) {
	start := time.Now()
	cand, err := m.next.Verify(ctx, files, req)
	status := ""
	if cand != nil {
		status = cand.Status
	}
	m.logger.Info("Verify",
		"files", len(files),
		"address", req.Address,
		"chainId", req.ChainID,
		"status", status,
		"duration", time.Since(start),
		"error", err,
	)
	return cand, err
}

func (m *loggingMiddleware) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	snap, err := m.next.Snapshot(ctx, sessionID)
	m.logger.Debug("Snapshot", "session", sessionID, "error", err)
	return snap, err
}

func (m *loggingMiddleware) Reset(ctx context.Context, sessionID string) error {
	err := m.next.Reset(ctx, sessionID)
	m.logger.Info("Reset", "session", sessionID, "error", err)
	return err
}

func (m *loggingMiddleware) BatchStatus(ctx context.Context, addresses, chainIDs []string) []AddressStatus {
	start := time.Now()
	result := m.next.BatchStatus(ctx, addresses, chainIDs)
	m.logger.Debug("BatchStatus",
		"addresses", len(addresses),
		"chains", len(chainIDs),
		"duration", time.Since(start),
	)
	return result
}
