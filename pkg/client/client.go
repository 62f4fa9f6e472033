// Package client provides a Go client for the Sourcify verification API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Client is a Sourcify API client. Session-based calls ride on a cookie, so
// one Client holds one server-side session across UploadFiles and
// VerifyContract calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. A cookie jar is installed if the
// client has none, since the session depends on it.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Sourcify client
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
			Jar:     jar,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}

	return c
}

// Contract is one verification candidate as the server reports it.
type Contract struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	CompilerVersion  string            `json:"compilerVersion"`
	ResolvedSources  map[string]string `json:"resolvedSources"`
	MissingSources   map[string]string `json:"missingSources"`
	InvalidSources   map[string]string `json:"invalidSources"`
	Address          string            `json:"address,omitempty"`
	ChainID          string            `json:"chainId,omitempty"`
	Status           string            `json:"status"`
	StatusMessage    string            `json:"statusMessage,omitempty"`
	StorageTimestamp string            `json:"storageTimestamp,omitempty"`
}

// UploadResult reports the effect of a file upload on the session.
type UploadResult struct {
	NewFiles    int        `json:"newFiles"`
	Contracts   []Contract `json:"contracts"`
	UnusedPaths []string   `json:"unused"`
}

// SessionData is the current state of the client's session.
type SessionData struct {
	Contracts   []Contract `json:"contracts"`
	UnusedPaths []string   `json:"unused"`
	Files       []string   `json:"files"`
}

// AddressStatus is the verification status of one address in a batch lookup.
type AddressStatus struct {
	Address  string   `json:"address"`
	Status   string   `json:"status"`
	ChainIDs []string `json:"chainIds,omitempty"`
}

// Chain describes one chain the server verifies against.
type Chain struct {
	ChainID int64  `json:"chainId"`
	Name    string `json:"name"`
}

// VerifyRequest is a stateless verification: files and target in one call.
type VerifyRequest struct {
	Address    string            `json:"address"`
	ChainID    string            `json:"chainId"`
	ContractID string            `json:"contractId,omitempty"`
	Files      map[string]string `json:"files"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadFiles uploads source and metadata files into the session. The first
// call establishes the session; later calls add to it.
func (c *Client) UploadFiles(ctx context.Context, files map[string]string) (*UploadResult, error) {
	var resp UploadResult
	body := map[string]any{"files": files}
	if err := c.post(ctx, "/session/input-files", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyContract attaches an address and chain to a session candidate and
// verifies it. contractID may be empty when the session holds exactly one
// candidate.
func (c *Client) VerifyContract(ctx context.Context, contractID, address, chainID string) (*Contract, error) {
	var resp Contract
	body := map[string]string{
		"contractId": contractID,
		"address":    address,
		"chainId":    chainID,
	}
	if err := c.post(ctx, "/session/verify-validated", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionData returns the current session state. Without a session it returns
// an empty state rather than an error.
func (c *Client) SessionData(ctx context.Context) (*SessionData, error) {
	var resp SessionData
	if err := c.get(ctx, "/session/data", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearSession destroys the session's files and candidates.
func (c *Client) ClearSession(ctx context.Context) error {
	return c.post(ctx, "/session/clear", nil, nil)
}

// CheckByAddresses looks up stored verification results for addresses across
// chains. Unknown addresses come back with status "false".
func (c *Client) CheckByAddresses(ctx context.Context, addresses, chainIDs []string) ([]AddressStatus, error) {
	q := url.Values{}
	q.Set("addresses", strings.Join(addresses, ","))
	q.Set("chainIds", strings.Join(chainIDs, ","))

	var resp []AddressStatus
	if err := c.get(ctx, "/check-by-addresses?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Verify runs a stateless verification: files and target in one call, no
// session involved.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*Contract, error) {
	var resp Contract
	if err := c.post(ctx, "/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chains lists the chains the server verifies against.
func (c *Client) Chains(ctx context.Context) ([]Chain, error) {
	var resp []Chain
	if err := c.get(ctx, "/chains", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
