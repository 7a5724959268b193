package specsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

const (
	// DefaultTimeout bounds a single spec download.
	DefaultTimeout = 30 * time.Second

	// MaxDocumentSize is the largest specification accepted.
	MaxDocumentSize = 32 << 20
)

// Ensure HTTPFetcher implements the interface.
var _ driven.SpecFetcher = (*HTTPFetcher)(nil)

// HTTPFetcher downloads specifications over HTTP(S) using conditional
// requests.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	now       func() time.Time
}

// NewHTTPFetcher creates an HTTP fetcher. A nil client gets DefaultTimeout.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPFetcher{client: client, userAgent: userAgent, now: time.Now}
}

// Supports accepts http:// and https:// URLs.
func (f *HTTPFetcher) Supports(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Fetch downloads and decodes the document. A 304 response to If-None-Match
// yields domain.ErrNotModified.
func (f *HTTPFetcher) Fetch(ctx context.Context, location, etag string) (*driven.FetchedSpec, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml, text/yaml, */*")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSpecUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, domain.ErrNotModified
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s returned %s", domain.ErrSpecUnavailable, location, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", domain.ErrSpecUnavailable, err)
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrInvalidSpec, MaxDocumentSize)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", location, err)
	}

	return &driven.FetchedSpec{
		Location:  location,
		Document:  doc,
		ETag:      resp.Header.Get("ETag"),
		FetchedAt: f.now(),
	}, nil
}
