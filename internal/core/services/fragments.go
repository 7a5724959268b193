package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

// Ensure FragmentService implements the interface.
var _ driving.FragmentService = (*FragmentService)(nil)

// Intent search bounds.
const (
	intentMatchesPerKeyword = 5
	intentResultLimit       = 10
)

// FragmentService is the best-effort fragment cache. Store failures are
// logged and turned into sentinel results so that a cache miss is the
// worst case any caller sees.
type FragmentService struct {
	store     driven.FragmentStore
	relations driven.RelationshipStore
	metrics   driven.Metrics
	now       func() time.Time
}

// FragmentServiceOption configures optional collaborators.
type FragmentServiceOption func(*FragmentService)

// WithRelationshipStore records endpoint to schema links during population.
func WithRelationshipStore(rs driven.RelationshipStore) FragmentServiceOption {
	return func(s *FragmentService) { s.relations = rs }
}

// WithFragmentMetrics attaches a metrics recorder.
func WithFragmentMetrics(m driven.Metrics) FragmentServiceOption {
	return func(s *FragmentService) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) FragmentServiceOption {
	return func(s *FragmentService) { s.now = now }
}

// NewFragmentService creates a fragment service over a store.
func NewFragmentService(store driven.FragmentStore, opts ...FragmentServiceOption) *FragmentService {
	s := &FragmentService{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store upserts a fragment. Missing timestamps are filled with the current time.
func (s *FragmentService) Store(ctx context.Context, fragment domain.Fragment) bool {
	if fragment.ID == "" || fragment.APIID == "" {
		logger.Warn("fragment store: rejecting fragment without id or api id")
		return false
	}
	now := s.now()
	if fragment.CreatedAt.IsZero() {
		fragment.CreatedAt = now
	}
	if fragment.UpdatedAt.IsZero() {
		fragment.UpdatedAt = now
	}

	if err := s.store.Save(ctx, &fragment); err != nil {
		s.storeFailed("save", err)
		return false
	}
	if s.metrics != nil {
		s.metrics.FragmentsStored(fragment.APIID, 1)
	}
	return true
}

// Get returns a fragment and records a usage. The returned copy reflects
// the increment even when recording it failed.
func (s *FragmentService) Get(ctx context.Context, id string) *domain.Fragment {
	fragment, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.storeFailed("get", err)
		}
		if s.metrics != nil {
			s.metrics.FragmentLookup(false)
		}
		return nil
	}
	if s.metrics != nil {
		s.metrics.FragmentLookup(true)
	}

	s.touch(ctx, fragment)
	return fragment
}

// Find returns fragments matching the query, hottest first, and records a
// usage for each. Every returned fragment counts as used.
func (s *FragmentService) Find(ctx context.Context, query domain.FragmentQuery) []domain.Fragment {
	fragments, err := s.store.Find(ctx, query)
	if err != nil {
		s.storeFailed("find", err)
		return []domain.Fragment{}
	}
	for i := range fragments {
		s.touch(ctx, &fragments[i])
	}
	return fragments
}

// FindByIntent runs one substring search per intent keyword, unions the
// matches in first-seen order and records a usage for each.
func (s *FragmentService) FindByIntent(ctx context.Context, apiID, intent string) []domain.Fragment {
	results := []domain.Fragment{}
	seen := map[string]struct{}{}

	for _, keyword := range Keywords(intent) {
		matches, err := s.store.Search(ctx, apiID, keyword, intentMatchesPerKeyword)
		if err != nil {
			s.storeFailed("search", err)
			continue
		}
		for i := range matches {
			if _, dup := seen[matches[i].ID]; dup {
				continue
			}
			seen[matches[i].ID] = struct{}{}
			results = append(results, matches[i])
		}
	}

	if len(results) > intentResultLimit {
		results = results[:intentResultLimit]
	}
	for i := range results {
		s.touch(ctx, &results[i])
	}

	if s.metrics != nil {
		s.metrics.IntentSearch(len(results) > 0)
	}
	logger.Debug("intent search %q on %s: %d fragments", intent, apiID, len(results))
	return results
}

// Extract decomposes a specification without storing anything.
func (s *FragmentService) Extract(apiID string, spec domain.SpecDocument) []domain.Fragment {
	return ExtractFragments(apiID, spec)
}

// Populate extracts and stores every fragment of spec, one independent
// upsert at a time, then links endpoints to the schemas they reference.
// Returns the number of fragments stored.
func (s *FragmentService) Populate(ctx context.Context, apiID string, spec domain.SpecDocument) int {
	fragments := ExtractFragments(apiID, spec)
	stored := 0
	storedIDs := make(map[string]struct{}, len(fragments))
	for _, f := range fragments {
		if s.Store(ctx, f) {
			stored++
			storedIDs[f.ID] = struct{}{}
		}
	}

	if s.relations != nil {
		s.linkSchemas(ctx, apiID, fragments, storedIDs)
	}

	logger.Debug("populated %d of %d fragments for %s", stored, len(fragments), apiID)
	return stored
}

func (s *FragmentService) linkSchemas(ctx context.Context, apiID string, fragments []domain.Fragment, stored map[string]struct{}) {
	for i := range fragments {
		f := &fragments[i]
		if !f.IsEndpoint() {
			continue
		}
		if _, ok := stored[f.ID]; !ok {
			continue
		}
		for _, name := range SchemaRefs(f.Content[domain.ContentKeyOperation]) {
			childID := SchemaFragmentID(apiID, name)
			if _, ok := stored[childID]; !ok {
				continue
			}
			rel := domain.Relationship{
				ParentID: f.ID,
				ChildID:  childID,
				Type:     domain.RelationshipReferences,
			}
			if err := s.relations.SaveRelationship(ctx, rel); err != nil {
				s.storeFailed("save relationship", err)
			}
		}
	}
}

// Relationships returns the links of a fragment, or an empty slice.
func (s *FragmentService) Relationships(ctx context.Context, id string) []domain.Relationship {
	if s.relations == nil {
		return []domain.Relationship{}
	}
	rels, err := s.relations.ListRelationships(ctx, id)
	if err != nil {
		s.storeFailed("list relationships", err)
		return []domain.Relationship{}
	}
	return rels
}

// Cleanup deletes fragments that were never used and are older than
// daysOld days. Fragments with any usage are kept regardless of age.
func (s *FragmentService) Cleanup(ctx context.Context, daysOld int) int {
	if daysOld < 0 {
		daysOld = 0
	}
	cutoff := s.now().Add(-time.Duration(daysOld) * 24 * time.Hour)
	deleted, err := s.store.DeleteUnused(ctx, cutoff)
	if err != nil {
		s.storeFailed("cleanup", err)
		return 0
	}
	if s.metrics != nil {
		s.metrics.CleanupDeleted(deleted)
	}
	logger.Info("cleanup removed %d fragments unused for %d days", deleted, daysOld)
	return deleted
}

// Stats aggregates usage for one API. Unknown APIs and store failures
// yield zeroed stats.
func (s *FragmentService) Stats(ctx context.Context, apiID string) domain.APIStats {
	stats, err := s.store.Stats(ctx, apiID)
	if err != nil {
		s.storeFailed("stats", err)
		return domain.EmptyAPIStats(apiID)
	}
	if stats.FragmentStats == nil {
		stats.FragmentStats = map[domain.FragmentType]int{}
	}
	return *stats
}

// touch records a usage in the store and mirrors it on the caller's copy.
// A failed increment is logged and does not fail the read.
func (s *FragmentService) touch(ctx context.Context, fragment *domain.Fragment) {
	now := s.now()
	if err := s.store.IncrementUsage(ctx, fragment.ID, now); err != nil {
		s.storeFailed("increment usage", err)
	}
	fragment.UsageCount++
	fragment.LastUsed = now
}

func (s *FragmentService) storeFailed(op string, err error) {
	logger.Warn("fragment store %s failed: %v", op, err)
	if s.metrics != nil {
		s.metrics.StoreError(op)
	}
}
