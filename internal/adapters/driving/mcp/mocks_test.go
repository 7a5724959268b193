package mcp

import (
	"context"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// mockResearchService is a mock implementation of driving.ResearchService.
type mockResearchService struct {
	report      string
	lastRequest domain.ResearchRequest
	lastLimit   int
	lastDays    int
	calls       int
}

func (m *mockResearchService) Plan(_ context.Context, req domain.ResearchRequest) (*domain.ResearchResult, error) {
	m.lastRequest = req
	plan := domain.DefaultCallPlan(req.APIID)
	return &domain.ResearchResult{Plan: plan}, nil
}

func (m *mockResearchService) Research(_ context.Context, req domain.ResearchRequest) string {
	m.calls++
	m.lastRequest = req
	return m.report
}

func (m *mockResearchService) ListFragments(_ context.Context, _ string, limit int) string {
	m.lastLimit = limit
	return m.report
}

func (m *mockResearchService) Cleanup(_ context.Context, daysOld int) string {
	m.calls++
	m.lastDays = daysOld
	return m.report
}

// mockFragmentService is a mock implementation of driving.FragmentService.
type mockFragmentService struct {
	fragments     map[string]*domain.Fragment
	relationships []domain.Relationship
	stats         domain.APIStats
	lastQuery     domain.FragmentQuery
}

func (m *mockFragmentService) Store(_ context.Context, _ domain.Fragment) bool { return true }

func (m *mockFragmentService) Get(_ context.Context, id string) *domain.Fragment {
	return m.fragments[id]
}

func (m *mockFragmentService) Find(_ context.Context, query domain.FragmentQuery) []domain.Fragment {
	m.lastQuery = query
	var out []domain.Fragment
	for _, f := range m.fragments {
		if query.APIID == "" || f.APIID == query.APIID {
			out = append(out, *f)
		}
	}
	return out
}

func (m *mockFragmentService) FindByIntent(_ context.Context, _, _ string) []domain.Fragment {
	return nil
}

func (m *mockFragmentService) Extract(_ string, _ domain.SpecDocument) []domain.Fragment {
	return nil
}

func (m *mockFragmentService) Populate(_ context.Context, _ string, _ domain.SpecDocument) int {
	return 0
}

func (m *mockFragmentService) Relationships(_ context.Context, _ string) []domain.Relationship {
	return m.relationships
}

func (m *mockFragmentService) Cleanup(_ context.Context, _ int) int { return 0 }

func (m *mockFragmentService) Stats(_ context.Context, apiID string) domain.APIStats {
	if m.stats.APIID == "" {
		return domain.EmptyAPIStats(apiID)
	}
	return m.stats
}

// mockSpecService is a mock implementation of driving.SpecService.
type mockSpecService struct {
	apis     []domain.APIMetadata
	imported int
	err      error
}

func (m *mockSpecService) Import(_ context.Context, _, _ string) (int, error) {
	return m.imported, m.err
}

func (m *mockSpecService) Refresh(_ context.Context) (int, error) {
	return 0, m.err
}

func (m *mockSpecService) Fetch(_ context.Context, _ string) (domain.SpecDocument, error) {
	return nil, m.err
}

func (m *mockSpecService) List(_ context.Context) ([]domain.APIMetadata, error) {
	return m.apis, m.err
}

func (m *mockSpecService) Get(_ context.Context, apiID string) (*domain.APIMetadata, error) {
	for i := range m.apis {
		if m.apis[i].APIID == apiID {
			return &m.apis[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
