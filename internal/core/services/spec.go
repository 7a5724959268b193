package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

// Ensure SpecService implements the interface.
var _ driving.SpecService = (*SpecService)(nil)

// SpecService imports specifications from external locations into the
// fragment cache and keeps per-API bookkeeping.
type SpecService struct {
	fetchers  []driven.SpecFetcher
	fragments driving.FragmentService
	apis      driven.APIMetadataStore
	now       func() time.Time
}

// NewSpecService creates a spec service. Fetchers are tried in order and
// the first one that supports a location handles it.
func NewSpecService(fragments driving.FragmentService, apis driven.APIMetadataStore, fetchers ...driven.SpecFetcher) *SpecService {
	return &SpecService{
		fetchers:  fetchers,
		fragments: fragments,
		apis:      apis,
		now:       time.Now,
	}
}

// Import fetches and populates one specification.
func (s *SpecService) Import(ctx context.Context, apiID, location string) (int, error) {
	n, _, err := s.importSpec(ctx, apiID, location)
	return n, err
}

// Refresh re-imports every API with a recorded location.
func (s *SpecService) Refresh(ctx context.Context) (int, error) {
	if s.apis == nil {
		return 0, nil
	}
	metas, err := s.apis.ListAPIMetadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("list apis: %w", err)
	}

	refreshed := 0
	var errs []error
	for _, meta := range metas {
		if meta.SpecLocation == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		_, changed, err := s.importSpec(ctx, meta.APIID, meta.SpecLocation)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", meta.APIID, err))
			continue
		}
		if changed {
			refreshed++
		}
	}
	return refreshed, errors.Join(errs...)
}

// Fetch reads and decodes a specification without importing it.
func (s *SpecService) Fetch(ctx context.Context, location string) (domain.SpecDocument, error) {
	fetcher := s.fetcherFor(location)
	if fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher for %s", domain.ErrSpecUnavailable, location)
	}
	fetched, err := fetcher.Fetch(ctx, location, "")
	if err != nil {
		return nil, err
	}
	return fetched.Document, nil
}

// List returns metadata for every known API.
func (s *SpecService) List(ctx context.Context) ([]domain.APIMetadata, error) {
	if s.apis == nil {
		return []domain.APIMetadata{}, nil
	}
	return s.apis.ListAPIMetadata(ctx)
}

// Get returns metadata for one API.
func (s *SpecService) Get(ctx context.Context, apiID string) (*domain.APIMetadata, error) {
	if s.apis == nil {
		return nil, domain.ErrNotFound
	}
	return s.apis.GetAPIMetadata(ctx, apiID)
}

// importSpec reports whether the document changed since the last fetch.
func (s *SpecService) importSpec(ctx context.Context, apiID, location string) (int, bool, error) {
	apiID = strings.TrimSpace(apiID)
	if apiID == "" || strings.TrimSpace(location) == "" {
		return 0, false, fmt.Errorf("%w: api id and location are required", domain.ErrInvalidInput)
	}
	fetcher := s.fetcherFor(location)
	if fetcher == nil {
		return 0, false, fmt.Errorf("%w: no fetcher for %s", domain.ErrSpecUnavailable, location)
	}

	meta := domain.APIMetadata{APIID: apiID}
	if s.apis != nil {
		existing, err := s.apis.GetAPIMetadata(ctx, apiID)
		switch {
		case err == nil:
			meta = *existing
		case !errors.Is(err, domain.ErrNotFound):
			logger.Warn("load metadata for %s: %v", apiID, err)
		}
	}

	etag := ""
	if meta.SpecLocation == location {
		etag = meta.ETag
	}

	fetched, err := fetcher.Fetch(ctx, location, etag)
	if errors.Is(err, domain.ErrNotModified) {
		logger.Info("specification for %s is unchanged", apiID)
		meta.LastFetched = s.now()
		s.saveMetadata(ctx, meta)
		return meta.FragmentCount, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	n := s.fragments.Populate(ctx, apiID, fetched.Document)
	stats := s.fragments.Stats(ctx, apiID)

	meta.SpecLocation = location
	meta.LastFetched = fetched.FetchedAt
	if meta.LastFetched.IsZero() {
		meta.LastFetched = s.now()
	}
	meta.ETag = fetched.ETag
	meta.Version = fetched.Document.Version()
	meta.FragmentCount = stats.TotalFragments
	meta.TotalUsage = stats.TotalUsage
	s.saveMetadata(ctx, meta)

	logger.Info("imported %d fragments for %s from %s", n, apiID, location)
	return n, true, nil
}

func (s *SpecService) saveMetadata(ctx context.Context, meta domain.APIMetadata) {
	if s.apis == nil {
		return
	}
	if err := s.apis.SaveAPIMetadata(ctx, meta); err != nil {
		logger.Warn("save metadata for %s: %v", meta.APIID, err)
	}
}

func (s *SpecService) fetcherFor(location string) driven.SpecFetcher {
	for _, f := range s.fetchers {
		if f.Supports(location) {
			return f
		}
	}
	return nil
}
