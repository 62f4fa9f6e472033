// Package verifier is an HTTP client for the compiler backend that recompiles
// candidate sources and compares the result against on-chain bytecode.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackromo888/sourcify/internal/contract"
)

// Client talks to a verification backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the request timeout. Compilation of large contracts can
// take a while, so the default is generous.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// verifyRequest is the wire form of a verification attempt.
type verifyRequest struct {
	Address         string            `json:"address"`
	ChainID         string            `json:"chainId"`
	ContractName    string            `json:"contractName,omitempty"`
	CompilerVersion string            `json:"compilerVersion"`
	Sources         map[string]string `json:"sources"`
}

// verifyResponse mirrors the backend's result payload.
type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// apiError represents a backend error response
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Verify submits a candidate's sources for recompilation and returns the
// backend's verdict. A non-nil error means the attempt itself failed
// (transport, malformed response); the caller decides how to surface that.
func (c *Client) Verify(ctx context.Context, cand *contract.Candidate) (*contract.Verdict, error) {
	req := verifyRequest{
		Address:         cand.Address,
		ChainID:         cand.ChainID,
		ContractName:    cand.Name,
		CompilerVersion: cand.CompilerVersion,
		Sources:         cand.ResolvedSources,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("encoding verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", &buf)
	if err != nil {
		return nil, fmt.Errorf("building verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("submitting candidate to verifier",
		"candidate", cand.ID,
		"address", cand.Address,
		"chainId", cand.ChainID,
		"sources", len(cand.ResolvedSources))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.parseError(resp)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding verifier response: %w", err)
	}

	switch result.Status {
	case contract.StatusPerfect, contract.StatusPartial,
		contract.StatusExtraFileInput, contract.StatusError:
	default:
		return nil, fmt.Errorf("verifier returned unknown status %q", result.Status)
	}

	return &contract.Verdict{Status: result.Status, Message: result.Message}, nil
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error apiError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return fmt.Errorf("verifier returned HTTP %d", resp.StatusCode)
	}
	return &errResp.Error
}
