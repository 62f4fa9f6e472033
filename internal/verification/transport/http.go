// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jackromo888/sourcify/internal/checker"
	"github.com/jackromo888/sourcify/internal/contract"
	"github.com/jackromo888/sourcify/internal/session"
	"github.com/jackromo888/sourcify/internal/verification/domain"
)

// sessionCookie binds a browser to its server-side session.
const sessionCookie = "sourcify.sid"

// maxMultipartMemory bounds the in-memory part of multipart parsing; larger
// parts spill to disk.
const maxMultipartMemory = 8 << 20

// Service defines the verification service interface for HTTP transport.
type Service interface {
	CreateSession(ctx context.Context) (string, error)
	UploadFiles(ctx context.Context, sessionID string, files []contract.File) (*domain.UploadResult, error)
	AttachTargetAndVerify(ctx context.Context, sessionID string, req domain.TargetRequest) (*contract.Candidate, error)
	Verify(ctx context.Context, files []contract.File, req domain.TargetRequest) (*contract.Candidate, error)
	Snapshot(ctx context.Context, sessionID string) (*domain.Snapshot, error)
	Reset(ctx context.Context, sessionID string) error
	BatchStatus(ctx context.Context, addresses, chainIDs []string) []domain.AddressStatus
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc Service
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the verification routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session/input-files", h.handleInputFiles)
	r.Post("/session/verify-validated", h.handleVerifyValidated)
	r.Get("/session/data", h.handleSessionData)
	r.Post("/session/clear", h.handleSessionClear)
	r.Get("/check-by-addresses", h.handleCheckByAddresses)
	r.Post("/verify", h.handleVerify)
}

func (h *Handler) handleInputFiles(w http.ResponseWriter, r *http.Request) {
	files, err := parseFiles(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "No files provided")
		return
	}

	sid, fresh, err := h.sessionID(r)
	if err != nil || fresh {
		sid, err = h.newSession(w, r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session")
			return
		}
	}

	result, err := h.svc.UploadFiles(r.Context(), sid, files)
	if errors.Is(err, domain.ErrSessionNotFound) {
		// Stale cookie; start over with a fresh session.
		sid, err = h.newSession(w, r)
		if err == nil {
			result, err = h.svc.UploadFiles(r.Context(), sid, files)
		}
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleVerifyValidated(w http.ResponseWriter, r *http.Request) {
	var req VerifyValidatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	sid, fresh, err := h.sessionID(r)
	if err != nil || fresh {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No session; upload files first")
		return
	}

	cand, err := h.svc.AttachTargetAndVerify(r.Context(), sid, domain.TargetRequest{
		ContractID: req.ContractID,
		Address:    req.Address,
		ChainID:    req.ChainID,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cand)
}

func (h *Handler) handleSessionData(w http.ResponseWriter, r *http.Request) {
	sid, fresh, err := h.sessionID(r)
	if err != nil || fresh {
		// A browser without a session sees an empty one.
		writeJSON(w, http.StatusOK, &domain.Snapshot{
			Candidates:  []*contract.Candidate{},
			UnusedPaths: []string{},
			Files:       []string{},
		})
		return
	}

	snap, err := h.svc.Snapshot(r.Context(), sid)
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeJSON(w, http.StatusOK, &domain.Snapshot{
			Candidates:  []*contract.Candidate{},
			UnusedPaths: []string{},
			Files:       []string{},
		})
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	sid, fresh, err := h.sessionID(r)
	if err == nil && !fresh {
		if err := h.svc.Reset(r.Context(), sid); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleCheckByAddresses(w http.ResponseWriter, r *http.Request) {
	addresses := splitParam(r.URL.Query().Get("addresses"))
	chainIDs := splitParam(r.URL.Query().Get("chainIds"))
	if len(addresses) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "addresses parameter is required")
		return
	}
	if len(chainIDs) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "chainIds parameter is required")
		return
	}

	result := h.svc.BatchStatus(r.Context(), addresses, chainIDs)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	files, req, err := parseVerifyBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	cand, err := h.svc.Verify(r.Context(), files, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cand)
}

// sessionID extracts the session id from the request cookie. fresh reports
// that no usable cookie was present.
func (h *Handler) sessionID(r *http.Request) (id string, fresh bool, err error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return "", true, nil
	}
	return c.Value, false, nil
}

// newSession creates a session and sets its cookie on the response.
func (h *Handler) newSession(w http.ResponseWriter, r *http.Request) (string, error) {
	id, err := h.svc.CreateSession(r.Context())
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrCapacityExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, "CAPACITY_EXCEEDED", "Session file size limit exceeded")
	case errors.Is(err, checker.ErrMalformedMetadata):
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidChainID):
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, domain.ErrChainNotFound):
		writeError(w, http.StatusBadRequest, "CHAIN_NOT_SUPPORTED", err.Error())
	case errors.Is(err, domain.ErrChoiceRequired):
		writeError(w, http.StatusBadRequest, "CHOICE_REQUIRED", err.Error())
	case errors.Is(err, domain.ErrCandidateNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNoFiles):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// parseFiles reads uploaded files from either a multipart form or a JSON
// body of the InputFilesRequest shape.
func parseFiles(r *http.Request) ([]contract.File, error) {
	if isMultipart(r) {
		return parseMultipartFiles(r)
	}
	var body InputFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return body.ToFiles(), nil
}

// parseVerifyBody reads a stateless verification request: files plus target,
// as multipart form fields or one JSON body.
func parseVerifyBody(r *http.Request) ([]contract.File, domain.TargetRequest, error) {
	if isMultipart(r) {
		files, err := parseMultipartFiles(r)
		if err != nil {
			return nil, domain.TargetRequest{}, err
		}
		return files, domain.TargetRequest{
			ContractID: r.FormValue("contractId"),
			Address:    r.FormValue("address"),
			ChainID:    r.FormValue("chainId"),
		}, nil
	}

	var body VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, domain.TargetRequest{}, errors.New("invalid JSON body")
	}
	return InputFilesRequest{Files: body.Files}.ToFiles(), domain.TargetRequest{
		ContractID: body.ContractID,
		Address:    body.Address,
		ChainID:    body.ChainID,
	}, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func parseMultipartFiles(r *http.Request) ([]contract.File, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, errors.New("invalid multipart form")
	}
	var names []string
	for name := range r.MultipartForm.File {
		names = append(names, name)
	}
	sort.Strings(names)

	var files []contract.File
	for _, name := range names {
		for _, fh := range r.MultipartForm.File[name] {
			f, err := fh.Open()
			if err != nil {
				return nil, errors.New("reading uploaded file " + fh.Filename)
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, errors.New("reading uploaded file " + fh.Filename)
			}
			files = append(files, contract.File{Path: fh.Filename, Content: content})
		}
	}
	return files, nil
}

// splitParam splits a comma-separated query parameter, dropping empties.
func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
