// Package transport provides HTTP request/response types for the verification domain.
package transport

import (
	"sort"

	"github.com/jackromo888/sourcify/internal/contract"
)

// InputFilesRequest is the JSON form of a file upload. Multipart uploads are
// accepted as well; this shape exists for API clients.
type InputFilesRequest struct {
	Files map[string]string `json:"files"`
}

// ToFiles converts the upload into files with a deterministic order.
func (r InputFilesRequest) ToFiles() []contract.File {
	paths := make([]string, 0, len(r.Files))
	for p := range r.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]contract.File, len(paths))
	for i, p := range paths {
		files[i] = contract.File{Path: p, Content: []byte(r.Files[p])}
	}
	return files
}

// VerifyValidatedRequest attaches a verification target to a session
// candidate. ContractID may be empty when the session holds exactly one.
type VerifyValidatedRequest struct {
	ContractID string `json:"contractId"`
	Address    string `json:"address"`
	ChainID    string `json:"chainId"`
}

// VerifyRequest is the body of a stateless verification: files and target in
// one call, no session.
type VerifyRequest struct {
	Address    string            `json:"address"`
	ChainID    string            `json:"chainId"`
	ContractID string            `json:"contractId,omitempty"`
	Files      map[string]string `json:"files"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
