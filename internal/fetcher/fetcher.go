// Package fetcher retrieves still-missing candidate sources from external
// content-addressed gateways.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jackromo888/sourcify/internal/contract"
	"github.com/jackromo888/sourcify/internal/observability/metrics"
)

// maxSourceBytes caps how much of a gateway response is read per source.
const maxSourceBytes = 4 * 1024 * 1024

// Fetcher resolves missing sources by content hash from HTTP gateways.
// Every fetched body is verified against the hash the metadata expects before
// it is admitted, so a misbehaving gateway cannot poison a candidate.
type Fetcher struct {
	gateways []string
	client   *http.Client
	logger   *slog.Logger
}

// New creates a fetcher for the given gateway base URLs.
func New(gateways []string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		gateways: gateways,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// FetchMissing tries to resolve every missing source of the candidate. It is
// best-effort: sources that cannot be fetched stay missing, and the returned
// error only summarizes what failed.
func (f *Fetcher) FetchMissing(ctx context.Context, cand *contract.Candidate) error {
	if len(f.gateways) == 0 || len(cand.MissingSources) == 0 {
		return nil
	}

	paths := make([]string, 0, len(cand.MissingSources))
	for p := range cand.MissingSources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var errs []error
	for _, path := range paths {
		expected := cand.MissingSources[path]
		content, err := f.fetchByHash(ctx, expected)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			metrics.SourceFetch("miss")
			continue
		}
		cand.Resolve(path, string(content))
		metrics.SourceFetch("hit")
		if f.logger != nil {
			f.logger.Debug("fetched missing source", "path", path, "hash", expected)
		}
	}
	return errors.Join(errs...)
}

// fetchByHash tries each gateway in order until one returns content with the
// expected keccak256 hash.
func (f *Fetcher) fetchByHash(ctx context.Context, hash string) ([]byte, error) {
	key := strings.TrimPrefix(hash, "0x")

	var errs []error
	for _, gateway := range f.gateways {
		url := strings.TrimRight(gateway, "/") + "/" + key

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		resp, err := f.client.Do(req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
		resp.Body.Close()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			errs = append(errs, fmt.Errorf("%s: HTTP %d", url, resp.StatusCode))
			continue
		}
		if contract.HashContent(body) != hash {
			errs = append(errs, fmt.Errorf("%s: content hash mismatch", url))
			continue
		}
		return body, nil
	}
	return nil, errors.Join(errs...)
}
