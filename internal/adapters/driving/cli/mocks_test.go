package cli

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// setupTestServices installs mock services and returns a cleanup func that
// restores the previous ones and resets command flags.
func setupTestServices() func() {
	prev := Services{
		Fragments: fragmentService,
		Research:  researchService,
		Specs:     specService,
		Settings:  settingsService,
		Scheduler: scheduler,
		Metrics:   metricsServer,
	}

	SetServices(Services{
		Fragments: newMockFragmentService(),
		Research:  &mockResearchService{},
		Specs:     &mockSpecService{},
		Settings:  newMockSettingsService(),
		Scheduler: &mockScheduler{},
	})

	return func() {
		SetServices(prev)
		resetFlags()
	}
}

func resetFlags() {
	researchSpec = ""
	researchParams = ""
	researchJSON = false
	fragmentsLimit = 10
	fragmentsJSON = false
	extractJSON = false
	cleanupDays = 30
	mcpPort = 0
	serveWatchDir = ""
	serveMetricsAddr = ""
	statsJSON = false
}

// mockFragmentService is a mock implementation of driving.FragmentService.
type mockFragmentService struct {
	fragments     map[string]*domain.Fragment
	relationships []domain.Relationship
	extracted     []domain.Fragment
	cleaned       int
}

func newMockFragmentService() *mockFragmentService {
	return &mockFragmentService{
		fragments: map[string]*domain.Fragment{
			"demo:endpoint:/users:get": {
				ID:    "demo:endpoint:/users:get",
				APIID: "demo",
				Type:  domain.FragmentTypeEndpoint,
				Content: map[string]any{
					domain.ContentKeyPath:   "/users",
					domain.ContentKeyMethod: "GET",
				},
				Metadata:   domain.FragmentMetadata{Summary: "List users", Tags: []string{"users"}},
				UsageCount: 2,
				CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		relationships: []domain.Relationship{
			{ParentID: "demo:endpoint:/users:get", ChildID: "demo:schema:User", Type: domain.RelationshipReferences},
		},
		extracted: []domain.Fragment{
			{
				ID:      "demo:endpoint:/users:get",
				Type:    domain.FragmentTypeEndpoint,
				Content: map[string]any{domain.ContentKeyPath: "/users", domain.ContentKeyMethod: "GET"},
			},
			{
				ID:      "demo:schema:User",
				Type:    domain.FragmentTypeSchema,
				Content: map[string]any{domain.ContentKeyName: "User"},
			},
		},
		cleaned: 4,
	}
}

func (m *mockFragmentService) Store(_ context.Context, _ domain.Fragment) bool { return true }

func (m *mockFragmentService) Get(_ context.Context, id string) *domain.Fragment {
	return m.fragments[id]
}

func (m *mockFragmentService) Find(_ context.Context, query domain.FragmentQuery) []domain.Fragment {
	var out []domain.Fragment
	for _, f := range m.fragments {
		if query.APIID == "" || f.APIID == query.APIID {
			out = append(out, *f)
		}
	}
	return out
}

func (m *mockFragmentService) FindByIntent(ctx context.Context, apiID, _ string) []domain.Fragment {
	return m.Find(ctx, domain.FragmentQuery{APIID: apiID})
}

func (m *mockFragmentService) Extract(_ string, _ domain.SpecDocument) []domain.Fragment {
	return m.extracted
}

func (m *mockFragmentService) Populate(_ context.Context, _ string, _ domain.SpecDocument) int {
	return len(m.extracted)
}

func (m *mockFragmentService) Relationships(_ context.Context, _ string) []domain.Relationship {
	return m.relationships
}

func (m *mockFragmentService) Cleanup(_ context.Context, _ int) int { return m.cleaned }

func (m *mockFragmentService) Stats(_ context.Context, apiID string) domain.APIStats {
	if apiID != "demo" {
		return domain.EmptyAPIStats(apiID)
	}
	return domain.APIStats{
		APIID:          "demo",
		TotalFragments: 2,
		FragmentStats: map[domain.FragmentType]int{
			domain.FragmentTypeEndpoint: 1,
			domain.FragmentTypeSchema:   1,
		},
		TotalUsage:   4,
		AverageUsage: 2,
		LastUsed:     time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
	}
}

// mockResearchService is a mock implementation of driving.ResearchService.
type mockResearchService struct {
	lastRequest domain.ResearchRequest
	lastLimit   int
	lastDays    int
	err         error
}

func (m *mockResearchService) Plan(_ context.Context, req domain.ResearchRequest) (*domain.ResearchResult, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ResearchResult{
		Plan: domain.CallPlan{
			APIID:       req.APIID,
			Endpoint:    "/users",
			Method:      "GET",
			Parameters:  map[string]any{},
			Reasoning:   "matched list verb",
			Confidence:  0.75,
			FragmentIDs: []string{"demo:endpoint:/users:get"},
			Source:      domain.PlanSourceHeuristic,
		},
		Stats:      domain.EmptyAPIStats(req.APIID),
		Validation: domain.PlanValidation{Passed: true, Problems: []string{}},
	}, nil
}

func (m *mockResearchService) Research(_ context.Context, req domain.ResearchRequest) string {
	m.lastRequest = req
	return "**API Research Results**\n**Endpoint**: GET /users\n"
}

func (m *mockResearchService) ListFragments(_ context.Context, apiID string, limit int) string {
	m.lastLimit = limit
	return "**Available Fragments for " + apiID + "**\n"
}

func (m *mockResearchService) Cleanup(_ context.Context, daysOld int) string {
	m.lastDays = daysOld
	return "Cleaned up 4 old fragments"
}

// mockSpecService is a mock implementation of driving.SpecService.
type mockSpecService struct {
	apis         []domain.APIMetadata
	lastAPIID    string
	lastLocation string
	err          error
}

func (m *mockSpecService) Import(_ context.Context, apiID, location string) (int, error) {
	m.lastAPIID = apiID
	m.lastLocation = location
	if m.err != nil {
		return 0, m.err
	}
	return 7, nil
}

func (m *mockSpecService) Refresh(_ context.Context) (int, error) {
	return len(m.apis), m.err
}

func (m *mockSpecService) Fetch(_ context.Context, location string) (domain.SpecDocument, error) {
	m.lastLocation = location
	if m.err != nil {
		return nil, m.err
	}
	return domain.SpecDocument{"paths": map[string]any{"/users": map[string]any{}}}, nil
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

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider = provider
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetStorageBackend(backend domain.StorageBackend) error {
	m.settings.Storage.Backend = backend
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateLLMConfig() error { return nil }

// mockScheduler is a mock implementation of driving.Scheduler.
type mockScheduler struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockScheduler) wasStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}
