package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// FetchedSpec is a decoded specification with its transport metadata.
type FetchedSpec struct {
	// Location is where the document was read from.
	Location string

	// Document is the decoded specification.
	Document domain.SpecDocument

	// ETag is the validator to present on the next fetch, if any.
	ETag string

	// FetchedAt is when the document was read.
	FetchedAt time.Time
}

// SpecFetcher reads specifications from files, URLs or repositories.
type SpecFetcher interface {
	// Fetch reads and decodes the document at location. JSON and YAML are
	// both accepted. When etag is non-empty and the source supports
	// conditional requests, domain.ErrNotModified is returned for an
	// unchanged document.
	Fetch(ctx context.Context, location, etag string) (*FetchedSpec, error)

	// Supports reports whether this fetcher handles the location.
	Supports(location string) bool
}
