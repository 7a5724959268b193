package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// failingFragmentStore fails every operation.
type failingFragmentStore struct{}

var _ driven.FragmentStore = failingFragmentStore{}

func (failingFragmentStore) Save(context.Context, *domain.Fragment) error { return assert.AnError }
func (failingFragmentStore) Get(context.Context, string) (*domain.Fragment, error) {
	return nil, assert.AnError
}
func (failingFragmentStore) Find(context.Context, domain.FragmentQuery) ([]domain.Fragment, error) {
	return nil, assert.AnError
}
func (failingFragmentStore) Search(context.Context, string, string, int) ([]domain.Fragment, error) {
	return nil, assert.AnError
}
func (failingFragmentStore) IncrementUsage(context.Context, string, time.Time) error {
	return assert.AnError
}
func (failingFragmentStore) DeleteUnused(context.Context, time.Time) (int, error) {
	return 0, assert.AnError
}
func (failingFragmentStore) Stats(context.Context, string) (*domain.APIStats, error) {
	return nil, assert.AnError
}

// brokenCounterStore serves reads but cannot record usage.
type brokenCounterStore struct {
	*memory.FragmentStore
}

func (brokenCounterStore) IncrementUsage(context.Context, string, time.Time) error {
	return assert.AnError
}

// recordingMetrics counts metric calls.
type recordingMetrics struct {
	lookups     map[bool]int
	stored      int
	searches    map[bool]int
	sources     []string
	llmCalls    int
	deleted     int
	rejections  []string
	storeErrors []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{lookups: map[bool]int{}, searches: map[bool]int{}}
}

func (m *recordingMetrics) FragmentLookup(hit bool)         { m.lookups[hit]++ }
func (m *recordingMetrics) FragmentsStored(_ string, n int) { m.stored += n }
func (m *recordingMetrics) IntentSearch(matched bool)       { m.searches[matched]++ }
func (m *recordingMetrics) Interpretation(source string, _ float64) {
	m.sources = append(m.sources, source)
}
func (m *recordingMetrics) LLMRequest(string, bool, time.Duration) { m.llmCalls++ }
func (m *recordingMetrics) CleanupDeleted(n int)                   { m.deleted += n }
func (m *recordingMetrics) ResearchRejected(reason string) {
	m.rejections = append(m.rejections, reason)
}
func (m *recordingMetrics) StoreError(op string) { m.storeErrors = append(m.storeErrors, op) }

func newTestFragmentService(t *testing.T) (*FragmentService, *memory.FragmentStore) {
	t.Helper()
	store := memory.NewFragmentStore()
	return NewFragmentService(store, WithRelationshipStore(store)), store
}

func testFragment(id, apiID string, usage int) domain.Fragment {
	return domain.Fragment{
		ID:    id,
		APIID: apiID,
		Type:  domain.FragmentTypeEndpoint,
		Content: map[string]any{
			domain.ContentKeyPath:   "/" + id,
			domain.ContentKeyMethod: "GET",
		},
		Metadata:   domain.FragmentMetadata{Summary: id, Keywords: []string{id}},
		UsageCount: usage,
	}
}

func TestFragmentService_StoreAndGet_RoundTrip(t *testing.T) {
	service, _ := newTestFragmentService(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	f := testFragment("f1", "github", 0)
	f.CreatedAt = created
	f.UpdatedAt = created
	require.True(t, service.Store(ctx, f))

	got := service.Get(ctx, "f1")
	require.NotNil(t, got)
	assert.Equal(t, 1, got.UsageCount)
	assert.False(t, got.LastUsed.IsZero())

	got.UsageCount = f.UsageCount
	got.LastUsed = f.LastUsed
	assert.Equal(t, f, *got)
}

func TestFragmentService_Store_FillsTimestamps(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	store := memory.NewFragmentStore()
	service := NewFragmentService(store, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.True(t, service.Store(ctx, testFragment("f1", "x", 0)))

	got, err := store.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestFragmentService_Store_RejectsMissingIdentity(t *testing.T) {
	service, _ := newTestFragmentService(t)

	assert.False(t, service.Store(context.Background(), domain.Fragment{APIID: "x"}))
	assert.False(t, service.Store(context.Background(), domain.Fragment{ID: "x"}))
}

func TestFragmentService_Get_Missing(t *testing.T) {
	service, _ := newTestFragmentService(t)
	assert.Nil(t, service.Get(context.Background(), "missing"))
}

func TestFragmentService_Get_TelemetryFailureStillReads(t *testing.T) {
	store := brokenCounterStore{memory.NewFragmentStore()}
	service := NewFragmentService(store)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.Fragment{ID: "f1", APIID: "x", Type: domain.FragmentTypeSchema}))

	got := service.Get(ctx, "f1")

	require.NotNil(t, got)
	assert.Equal(t, "f1", got.ID)
}

func TestFragmentService_StoreFailuresBecomeSentinels(t *testing.T) {
	metrics := newRecordingMetrics()
	service := NewFragmentService(failingFragmentStore{}, WithFragmentMetrics(metrics))
	ctx := context.Background()

	assert.False(t, service.Store(ctx, testFragment("f1", "x", 0)))
	assert.Nil(t, service.Get(ctx, "f1"))
	assert.Empty(t, service.Find(ctx, domain.FragmentQuery{}))
	assert.NotNil(t, service.Find(ctx, domain.FragmentQuery{}))
	assert.Empty(t, service.FindByIntent(ctx, "x", "list users"))
	assert.Zero(t, service.Cleanup(ctx, 30))
	assert.Zero(t, service.Populate(ctx, "x", issuesSpec()))

	stats := service.Stats(ctx, "x")
	assert.Equal(t, domain.EmptyAPIStats("x"), stats)

	assert.Contains(t, metrics.storeErrors, "save")
	assert.Contains(t, metrics.storeErrors, "stats")
}

func TestFragmentService_Find_OrderingAndUsage(t *testing.T) {
	service, store := newTestFragmentService(t)
	ctx := context.Background()

	for i, usage := range []int{1, 5, 3} {
		f := testFragment(fmt.Sprintf("f%d", i), "x", usage)
		require.True(t, service.Store(ctx, f))
	}

	got := service.Find(ctx, domain.FragmentQuery{APIID: "x"})
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].UsageCount, got[i].UsageCount)
	}

	stored, err := store.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 6, stored.UsageCount)
}

func TestFragmentService_FindByIntent(t *testing.T) {
	service, _ := newTestFragmentService(t)
	ctx := context.Background()

	users := testFragment("users", "api", 0)
	users.Metadata = domain.FragmentMetadata{Summary: "List users", Keywords: []string{"list", "users"}}
	teams := testFragment("teams", "api", 0)
	teams.Metadata = domain.FragmentMetadata{Summary: "List teams", Keywords: []string{"list", "teams"}}
	other := testFragment("other", "elsewhere", 0)
	other.Metadata = domain.FragmentMetadata{Summary: "List users"}
	for _, f := range []domain.Fragment{users, teams, other} {
		require.True(t, service.Store(ctx, f))
	}

	got := service.FindByIntent(ctx, "api", "show the users")
	require.Len(t, got, 1)
	assert.Equal(t, "users", got[0].ID)
	assert.Equal(t, 1, got[0].UsageCount)

	union := service.FindByIntent(ctx, "api", "list users and teams")
	assert.Len(t, union, 2)

	assert.Empty(t, service.FindByIntent(ctx, "api", "a an the"))
}

func TestFragmentService_FindByIntent_MatchesType(t *testing.T) {
	service, _ := newTestFragmentService(t)
	ctx := context.Background()
	require.True(t, service.Store(ctx, domain.Fragment{ID: "s1", APIID: "api", Type: domain.FragmentTypeSchema}))

	got := service.FindByIntent(ctx, "api", "which schema")
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}

func TestFragmentService_FindByIntent_CapsResults(t *testing.T) {
	service, _ := newTestFragmentService(t)
	ctx := context.Background()

	words := []string{"alpha", "bravo", "charlie", "delta"}
	for _, w := range words {
		for i := 0; i < 5; i++ {
			f := testFragment(fmt.Sprintf("%s-%d", w, i), "api", 0)
			f.Metadata = domain.FragmentMetadata{Keywords: []string{w}}
			require.True(t, service.Store(ctx, f))
		}
	}

	got := service.FindByIntent(ctx, "api", "alpha bravo charlie delta")
	assert.Len(t, got, intentResultLimit)
}

func TestFragmentService_Populate_Idempotent(t *testing.T) {
	service, store := newTestFragmentService(t)
	ctx := context.Background()

	first := service.Populate(ctx, "petstore", petstoreSpec())
	firstIDs := idsOf(service.Find(ctx, domain.FragmentQuery{APIID: "petstore", Limit: 100}))

	second := service.Populate(ctx, "petstore", petstoreSpec())
	secondIDs := idsOf(service.Find(ctx, domain.FragmentQuery{APIID: "petstore", Limit: 100}))

	assert.Equal(t, 5, first)
	assert.Equal(t, first, second)
	assert.ElementsMatch(t, firstIDs, secondIDs)

	stats, err := store.Stats(ctx, "petstore")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalFragments)
}

func TestFragmentService_Populate_PreservesUsage(t *testing.T) {
	service, store := newTestFragmentService(t)
	ctx := context.Background()

	service.Populate(ctx, "github", issuesSpec())
	id := EndpointFragmentID("github", "post", "/issues")
	require.NotNil(t, service.Get(ctx, id))

	service.Populate(ctx, "github", issuesSpec())

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)
}

func TestFragmentService_Populate_LinksSchemas(t *testing.T) {
	service, _ := newTestFragmentService(t)
	ctx := context.Background()

	service.Populate(ctx, "petstore", petstoreSpec())

	createPet := EndpointFragmentID("petstore", "post", "/pets")
	rels := service.Relationships(ctx, createPet)
	require.Len(t, rels, 1)
	assert.Equal(t, SchemaFragmentID("petstore", "Pet"), rels[0].ChildID)
	assert.Equal(t, domain.RelationshipReferences, rels[0].Type)

	assert.Empty(t, service.Relationships(ctx, EndpointFragmentID("petstore", "get", "/pets")))
}

func TestFragmentService_Cleanup_RetentionSafety(t *testing.T) {
	now := time.Now()
	store := memory.NewFragmentStore()
	metrics := newRecordingMetrics()
	service := NewFragmentService(store, WithClock(func() time.Time { return now }), WithFragmentMetrics(metrics))
	ctx := context.Background()

	neverUsed := testFragment("never", "x", 0)
	usedLongAgo := testFragment("used", "x", 4)
	usedLongAgo.LastUsed = now.AddDate(-2, 0, 0)
	staleZero := testFragment("stale", "x", 0)
	staleZero.LastUsed = now.AddDate(0, 0, -45)
	freshZero := testFragment("fresh", "x", 0)
	freshZero.LastUsed = now.AddDate(0, 0, -5)
	for _, f := range []domain.Fragment{neverUsed, usedLongAgo, staleZero, freshZero} {
		require.True(t, service.Store(ctx, f))
	}

	deleted := service.Cleanup(ctx, 30)

	assert.Equal(t, 2, deleted)
	assert.Equal(t, 2, metrics.deleted)
	remaining := idsOf(service.Find(ctx, domain.FragmentQuery{APIID: "x"}))
	assert.ElementsMatch(t, []string{"used", "fresh"}, remaining)
}

func TestFragmentService_Stats(t *testing.T) {
	service, _ := newTestFragmentService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.True(t, service.Store(ctx, testFragment(fmt.Sprintf("f%d", i), "x", i)))
	}

	stats := service.Stats(ctx, "x")
	assert.Equal(t, 3, stats.TotalFragments)
	assert.Equal(t, 6, stats.TotalUsage)
	assert.InDelta(t, 2.0, stats.AverageUsage, 1e-9)

	empty := service.Stats(ctx, "nothing")
	assert.Zero(t, empty.TotalFragments)
	assert.NotNil(t, empty.FragmentStats)
}

func TestFragmentService_Extract(t *testing.T) {
	service, store := newTestFragmentService(t)

	fragments := service.Extract("github", issuesSpec())

	require.Len(t, fragments, 1)
	stats, err := store.Stats(context.Background(), "github")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFragments)
}

func idsOf(fragments []domain.Fragment) []string {
	ids := make([]string, 0, len(fragments))
	for _, f := range fragments {
		ids = append(ids, f.ID)
	}
	return ids
}
