package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// Ensure FragmentStore implements the interfaces.
var (
	_ driven.FragmentStore     = (*FragmentStore)(nil)
	_ driven.RelationshipStore = (*FragmentStore)(nil)
	_ driven.APIMetadataStore  = (*FragmentStore)(nil)
)

// FragmentStore is an in-memory implementation of the fragment ports.
// Nothing is persisted; it backs tests and the memory storage backend.
type FragmentStore struct {
	mu            sync.RWMutex
	fragments     map[string]domain.Fragment
	relationships map[[2]string]domain.Relationship
	apis          map[string]domain.APIMetadata
}

// NewFragmentStore creates a new in-memory fragment store.
func NewFragmentStore() *FragmentStore {
	return &FragmentStore{
		fragments:     make(map[string]domain.Fragment),
		relationships: make(map[[2]string]domain.Relationship),
		apis:          make(map[string]domain.APIMetadata),
	}
}

// Save upserts a fragment, preserving usage fields and created_at of an
// existing entry.
func (s *FragmentStore) Save(_ context.Context, fragment *domain.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := cloneFragment(*fragment)
	if existing, ok := s.fragments[f.ID]; ok {
		existing.Content = f.Content
		existing.Metadata = f.Metadata
		existing.UpdatedAt = f.UpdatedAt
		existing.Embedding = f.Embedding
		s.fragments[f.ID] = existing
		return nil
	}
	s.fragments[f.ID] = f
	return nil
}

// Get retrieves a fragment by ID.
func (s *FragmentStore) Get(_ context.Context, id string) (*domain.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fragments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	f = cloneFragment(f)
	return &f, nil
}

// Find returns fragments matching the query, hottest first.
func (s *FragmentStore) Find(_ context.Context, query domain.FragmentQuery) ([]domain.Fragment, error) {
	s.mu.RLock()
	var result []domain.Fragment
	for _, f := range s.fragments {
		if query.APIID != "" && f.APIID != query.APIID {
			continue
		}
		if !query.MatchesType(f.Type) {
			continue
		}
		result = append(result, cloneFragment(f))
	}
	s.mu.RUnlock()

	sortByHeat(result)
	if limit := query.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Search returns fragments of one API whose metadata blob or type contains
// keyword, case-insensitively.
func (s *FragmentStore) Search(_ context.Context, apiID, keyword string, limit int) ([]domain.Fragment, error) {
	needle := strings.ToLower(keyword)

	s.mu.RLock()
	var result []domain.Fragment
	for _, f := range s.fragments {
		if f.APIID != apiID {
			continue
		}
		blob, err := json.Marshal(f.Metadata)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if strings.Contains(strings.ToLower(string(blob)), needle) ||
			strings.Contains(strings.ToLower(string(f.Type)), needle) {
			result = append(result, cloneFragment(f))
		}
	}
	s.mu.RUnlock()

	sortByHeat(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// IncrementUsage adds one to the usage counter and sets last_used.
func (s *FragmentStore) IncrementUsage(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fragments[id]
	if !ok {
		return domain.ErrNotFound
	}
	f.UsageCount++
	f.LastUsed = at
	s.fragments[id] = f
	return nil
}

// DeleteUnused removes never-used fragments last used before cutoff or never.
func (s *FragmentStore) DeleteUnused(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, f := range s.fragments {
		if f.UsageCount != 0 {
			continue
		}
		if f.LastUsed.IsZero() || f.LastUsed.Before(cutoff) {
			delete(s.fragments, id)
			deleted++
		}
	}
	return deleted, nil
}

// Stats aggregates counts and usage for one API.
func (s *FragmentStore) Stats(_ context.Context, apiID string) (*domain.APIStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.EmptyAPIStats(apiID)
	for _, f := range s.fragments {
		if f.APIID != apiID {
			continue
		}
		stats.TotalFragments++
		stats.FragmentStats[f.Type]++
		stats.TotalUsage += f.UsageCount
		if f.LastUsed.After(stats.LastUsed) {
			stats.LastUsed = f.LastUsed
		}
	}
	if stats.TotalFragments > 0 {
		stats.AverageUsage = float64(stats.TotalUsage) / float64(stats.TotalFragments)
	}
	return &stats, nil
}

// SaveRelationship upserts a link.
func (s *FragmentStore) SaveRelationship(_ context.Context, rel domain.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[[2]string{rel.ParentID, rel.ChildID}] = rel
	return nil
}

// ListRelationships returns links where the fragment is parent or child.
func (s *FragmentStore) ListRelationships(_ context.Context, fragmentID string) ([]domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.Relationship{}
	for _, rel := range s.relationships {
		if rel.ParentID == fragmentID || rel.ChildID == fragmentID {
			result = append(result, rel)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ParentID != result[j].ParentID {
			return result[i].ParentID < result[j].ParentID
		}
		return result[i].ChildID < result[j].ChildID
	})
	return result, nil
}

// SaveAPIMetadata creates or replaces API metadata.
func (s *FragmentStore) SaveAPIMetadata(_ context.Context, meta domain.APIMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apis[meta.APIID] = meta
	return nil
}

// GetAPIMetadata retrieves API metadata.
func (s *FragmentStore) GetAPIMetadata(_ context.Context, apiID string) (*domain.APIMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.apis[apiID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &meta, nil
}

// ListAPIMetadata returns all API metadata ordered by API id.
func (s *FragmentStore) ListAPIMetadata(_ context.Context) ([]domain.APIMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.APIMetadata, 0, len(s.apis))
	for _, meta := range s.apis {
		result = append(result, meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].APIID < result[j].APIID })
	return result, nil
}

// sortByHeat orders by usage count descending, then updated_at descending.
func sortByHeat(fragments []domain.Fragment) {
	sort.SliceStable(fragments, func(i, j int) bool {
		a, b := fragments[i], fragments[j]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}

func cloneFragment(f domain.Fragment) domain.Fragment {
	if f.Content != nil {
		f.Content = cloneMap(f.Content)
	}
	f.Metadata.Tags = cloneStrings(f.Metadata.Tags)
	f.Metadata.Keywords = cloneStrings(f.Metadata.Keywords)
	if f.Embedding != nil {
		f.Embedding = append([]float32(nil), f.Embedding...)
	}
	return f
}

// cloneMap copies nested maps and slices so callers never share content
// with the store.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		return cloneMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	case []string:
		return cloneStrings(t)
	default:
		return v
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
