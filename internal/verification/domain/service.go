package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackromo888/sourcify/internal/chains"
	"github.com/jackromo888/sourcify/internal/contract"
	"github.com/jackromo888/sourcify/internal/observability/metrics"
	"github.com/jackromo888/sourcify/internal/session"
	"github.com/jackromo888/sourcify/internal/storage"
	"github.com/jackromo888/sourcify/internal/validation"
)

type service struct {
	sessions session.Store
	checker  FileChecker
	fetcher  SourceFetcher
	verifier BackendVerifier
	matches  MatchStore
	registry *chains.Registry
	logger   *slog.Logger
}

// NewService creates a new verification service.
func NewService(
	sessions session.Store,
	checker FileChecker,
	fetcher SourceFetcher,
	verifier BackendVerifier,
	matches MatchStore,
	registry *chains.Registry,
	logger *slog.Logger,
) *service {
	return &service{
		sessions: sessions,
		checker:  checker,
		fetcher:  fetcher,
		verifier: verifier,
		matches:  matches,
		registry: registry,
		logger:   logger,
	}
}

// CreateSession makes a new empty session and returns its id.
func (s *service) CreateSession(ctx context.Context) (string, error) {
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	metrics.SessionCreated()
	return sess.ID, nil
}

// UploadFiles admits a batch of files into the session, reassembles
// candidates from the full file set, and runs a verification pass over every
// candidate that already has a target attached. Uploading only files the
// session has already seen changes nothing and triggers no reassembly.
func (s *service) UploadFiles(ctx context.Context, sessionID string, files []contract.File) (*UploadResult, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	added, err := sess.AddFiles(files)
	if err != nil {
		return nil, err
	}

	if added == 0 {
		return &UploadResult{
			NewFiles:    0,
			Candidates:  sess.SortedCandidates(),
			UnusedPaths: sess.UnusedPaths,
		}, nil
	}

	metrics.FilesUploaded(added)

	assembleErr := s.assemble(ctx, sess)
	if assembleErr == nil {
		s.verifyAll(ctx, sess)
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	if assembleErr != nil {
		return nil, assembleErr
	}

	return &UploadResult{
		NewFiles:    added,
		Candidates:  sess.SortedCandidates(),
		UnusedPaths: sess.UnusedPaths,
	}, nil
}

// AttachTargetAndVerify binds an (address, chainId) target to one candidate
// and runs the verification state machine for it.
func (s *service) AttachTargetAndVerify(ctx context.Context, sessionID string, req TargetRequest) (*contract.Candidate, error) {
	if err := validation.ValidateAddress(req.Address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := validation.ValidateChainID(req.ChainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChainID, err)
	}
	if !s.registry.Supported(req.ChainID) {
		return nil, fmt.Errorf("%w: chain %s", ErrChainNotFound, req.ChainID)
	}

	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cand, err := pickCandidate(sess.SortedCandidates(), req.ContractID)
	if err != nil {
		return nil, err
	}

	cand.Address = validation.NormalizeAddress(req.Address)
	cand.ChainID = req.ChainID

	s.verifyCandidate(ctx, sess, cand)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return cand, nil
}

// Verify runs a one-shot verification without session state: files in,
// verdict out. Any stored match for the target still short-circuits the
// compile.
func (s *service) Verify(ctx context.Context, files []contract.File, req TargetRequest) (*contract.Candidate, error) {
	if err := validation.ValidateAddress(req.Address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := validation.ValidateChainID(req.ChainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChainID, err)
	}
	if !s.registry.Supported(req.ChainID) {
		return nil, fmt.Errorf("%w: chain %s", ErrChainNotFound, req.ChainID)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	candidates, _, err := s.checker.CheckFiles(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("checking files: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoFiles
	}

	cand, err := pickCandidate(candidates, req.ContractID)
	if err != nil {
		return nil, err
	}

	cand.Address = validation.NormalizeAddress(req.Address)
	cand.ChainID = req.ChainID

	// Ephemeral session so the retry protocol can expand from the full
	// uploaded file set.
	sess := session.New("", 0)
	if _, err := sess.AddFiles(files); err != nil {
		return nil, err
	}

	s.verifyCandidate(ctx, sess, cand)
	return cand, nil
}

// Snapshot returns the externally visible state of a session.
func (s *service) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	files := sess.SortedFiles()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}

	return &Snapshot{
		Candidates:  sess.SortedCandidates(),
		UnusedPaths: sess.UnusedPaths,
		Files:       paths,
	}, nil
}

// Reset destroys a session and everything in it.
func (s *service) Reset(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// BatchStatus answers a bulk status query against already-confirmed results.
// It never touches session state and never calls the verifier; a lookup
// failure on one (address, chain) pair is swallowed so the batch completes.
func (s *service) BatchStatus(ctx context.Context, addresses, chainIDs []string) []AddressStatus {
	metrics.BatchLookup()
	out := make([]AddressStatus, 0, len(addresses))
	for _, addr := range addresses {
		if err := validation.ValidateAddress(addr); err != nil {
			out = append(out, AddressStatus{Address: addr, Status: contract.StatusNoMatch})
			continue
		}
		normalized := validation.NormalizeAddress(addr)

		status := contract.StatusNoMatch
		var matched []string
		for _, chainID := range chainIDs {
			found, err := s.matches.GetMatches(ctx, normalized, chainID)
			if err != nil {
				s.logger.Warn("batch lookup failed for chain",
					"address", normalized, "chainId", chainID, "error", err)
				continue
			}
			for _, m := range found {
				matched = append(matched, m.ChainID)
				if m.Status == contract.StatusPerfect {
					status = contract.StatusPerfect
				} else if status != contract.StatusPerfect {
					status = m.Status
				}
			}
		}

		out = append(out, AddressStatus{
			Address:  normalized,
			Status:   status,
			ChainIDs: matched,
		})
	}
	return out
}

func (s *service) getSession(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// assemble reruns candidate resolution over the whole session file set and
// merges the result into existing candidates by id. A structural failure
// from the checker marks every file unused and leaves candidates untouched.
func (s *service) assemble(ctx context.Context, sess *session.Session) error {
	files := sess.SortedFiles()
	candidates, unused, err := s.checker.CheckFiles(ctx, files)
	if err != nil {
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		sess.UnusedPaths = paths
		return fmt.Errorf("checking files: %w", err)
	}

	for _, cand := range candidates {
		if existing := sess.Candidate(cand.ID); existing != nil {
			existing.Merge(cand)
		} else {
			sess.Candidates[cand.ID] = cand
		}
	}
	sess.UnusedPaths = unused
	return nil
}

// verifyAll runs the state machine for every candidate with a target
// attached. Candidates without one are skipped; per-candidate failures stay
// on the candidate and never abort siblings.
func (s *service) verifyAll(ctx context.Context, sess *session.Session) {
	for _, cand := range sess.SortedCandidates() {
		if cand.Address == "" || cand.ChainID == "" {
			continue
		}
		s.verifyCandidate(ctx, sess, cand)
	}
}

// verifyCandidate drives one verification attempt for one candidate,
// updating its status in place:
//
//  1. best-effort fetch of still-missing sources
//  2. verifiability gate; stop silently if it fails
//  3. adopt a stored match for the (address, chainId) pair if one exists
//  4. call the verifier; on extra-file-input-bug retry exactly once with the
//     source set expanded from the whole session
//  5. persist a confirmed perfect or partial match
func (s *service) verifyCandidate(ctx context.Context, sess *session.Session, cand *contract.Candidate) {
	if len(cand.MissingSources) > 0 && s.fetcher != nil {
		if err := s.fetcher.FetchMissing(ctx, cand); err != nil {
			s.logger.Warn("fetching missing sources",
				"candidate", cand.ID, "error", err)
		}
	}

	if !cand.Verifiable() {
		return
	}

	stored, err := s.matches.GetMatches(ctx, cand.Address, cand.ChainID)
	if err != nil {
		s.logger.Warn("looking up stored matches",
			"address", cand.Address, "chainId", cand.ChainID, "error", err)
	} else if len(stored) > 0 {
		cand.Status = stored[0].Status
		cand.StatusMessage = stored[0].Message
		cand.StorageTimestamp = stored[0].CreatedAt
		metrics.VerificationAttempt("cached")
		return
	}

	verdict, err := s.verifier.Verify(ctx, cand)
	if err != nil {
		cand.Status = contract.StatusError
		cand.StatusMessage = err.Error()
		metrics.VerificationAttempt(contract.StatusError)
		return
	}

	if verdict.Status == contract.StatusExtraFileInput {
		metrics.VerificationRetry()
		expanded := s.checker.ExpandWithAllSources(cand, sess.SortedFiles())
		retry, err := s.verifier.Verify(ctx, expanded)
		if err != nil {
			cand.Status = contract.StatusError
			cand.StatusMessage = err.Error()
			metrics.VerificationAttempt(contract.StatusError)
			return
		}
		if retry.Status == contract.StatusPerfect || retry.Status == contract.StatusPartial {
			cand.Merge(expanded)
		}
		verdict = retry
	}

	cand.Status = verdict.Status
	cand.StatusMessage = verdict.Message
	metrics.VerificationAttempt(verdict.Status)

	if verdict.Status == contract.StatusPerfect || verdict.Status == contract.StatusPartial {
		now := time.Now().UTC().Format(time.RFC3339)
		cand.StorageTimestamp = now
		m := &storage.Match{
			Address:         cand.Address,
			ChainID:         cand.ChainID,
			Status:          verdict.Status,
			ContractName:    cand.Name,
			CompilerVersion: cand.CompilerVersion,
			Message:         verdict.Message,
			CreatedAt:       now,
		}
		if err := s.matches.StoreMatch(ctx, m); err != nil {
			s.logger.Error("storing confirmed match",
				"address", cand.Address, "chainId", cand.ChainID, "error", err)
		} else {
			metrics.MatchStored(verdict.Status)
		}
	}
}

// pickCandidate selects the candidate a target applies to. Without an
// explicit id the choice is only unambiguous when there is exactly one.
func pickCandidate(candidates []*contract.Candidate, id string) (*contract.Candidate, error) {
	if id != "" {
		for _, c := range candidates {
			if c.ID == id {
				return c, nil
			}
		}
		return nil, ErrCandidateNotFound
	}
	switch len(candidates) {
	case 0:
		return nil, ErrCandidateNotFound
	case 1:
		return candidates[0], nil
	default:
		return nil, ErrChoiceRequired
	}
}
