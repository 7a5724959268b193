package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

type researchFixture struct {
	service   *ResearchService
	fragments *FragmentService
	metrics   *recordingMetrics
}

func newResearchFixture(t *testing.T, limiter driven.RateLimiter, opts ...InterpreterOption) researchFixture {
	t.Helper()
	fragments := NewFragmentService(memory.NewFragmentStore())
	interpreter := NewInterpreter(fragments, opts...)
	metrics := newRecordingMetrics()
	return researchFixture{
		service:   NewResearchService(interpreter, fragments, NewCallGuard(limiter, 0), metrics),
		fragments: fragments,
		metrics:   metrics,
	}
}

func TestResearchService_Plan_RejectsBlankInput(t *testing.T) {
	f := newResearchFixture(t, nil)

	_, err := f.service.Plan(context.Background(), domain.ResearchRequest{Intent: "  ", APIID: "github"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.service.Plan(context.Background(), domain.ResearchRequest{Intent: "list users", APIID: "\t"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResearchService_Plan_RateLimited(t *testing.T) {
	f := newResearchFixture(t, newCountingLimiter(1))
	ctx := context.Background()

	_, err := f.service.Plan(ctx, githubRequest())
	require.NoError(t, err)

	_, err = f.service.Plan(ctx, githubRequest())
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, []string{"rate_limited"}, f.metrics.rejections)

	report := f.service.Research(ctx, githubRequest())
	assert.Contains(t, report, "Fragment-based API research failed: rate limited")
}

func TestResearchService_Plan_IssuesScenario(t *testing.T) {
	f := newResearchFixture(t, nil)

	result, err := f.service.Plan(context.Background(), githubRequest())
	require.NoError(t, err)

	assert.Equal(t, "/issues", result.Plan.Endpoint)
	assert.Equal(t, "POST", result.Plan.Method)
	assert.True(t, result.Validation.Passed)
	assert.Empty(t, result.Validation.Problems)
	assert.Equal(t, 1, result.Stats.TotalFragments)
	require.Len(t, result.Previews, 1)
	assert.Equal(t, "/issues", result.Previews[0].Path())
	assert.Empty(t, f.metrics.rejections)
}

func TestResearchService_Plan_PreviewsCapped(t *testing.T) {
	f := newResearchFixture(t, nil)
	paths := map[string]any{}
	for i := 0; i < 5; i++ {
		paths[fmt.Sprintf("/things/%d", i)] = map[string]any{
			"get": map[string]any{"summary": "Get thing"},
		}
	}

	result, err := f.service.Plan(context.Background(), domain.ResearchRequest{
		Intent: "get a thing",
		APIID:  "things",
		Spec:   domain.SpecDocument{"paths": paths},
	})
	require.NoError(t, err)

	assert.Len(t, result.Plan.FragmentIDs, 5)
	assert.Len(t, result.Previews, previewCount)
}

func TestResearchService_Plan_ValidationFailure(t *testing.T) {
	llm := &mockLLM{response: `{"endpoint":"/teams","method":"TRACE","parameters":{},"confidence":0.9}`}
	f := newResearchFixture(t, nil, WithLLM(llm, driven.GenerateOptions{}))

	result, err := f.service.Plan(context.Background(), githubRequest())
	require.NoError(t, err)

	assert.False(t, result.Validation.Passed)
	assert.Len(t, result.Validation.Problems, 2)
	assert.Equal(t, []string{"method_not_allowed", "unknown_endpoint"}, f.metrics.rejections)

	report := FormatResearchResult(result)
	assert.Contains(t, report, "- method \"TRACE\" is not allowed")
}

func TestResearchService_Research_Report(t *testing.T) {
	f := newResearchFixture(t, nil)

	report := f.service.Research(context.Background(), githubRequest())

	for _, want := range []string{
		"**API Research Results**",
		"**API ID**: github",
		"**Confidence**: 65.00%",
		"**Low confidence**: true",
		"**Source**: heuristic",
		"**Endpoint**: POST /issues",
		"\"owner\": \"octo\"",
		"**Used Fragments**",
		"Loaded 1 relevant fragments",
		"- POST /issues: Create an issue",
		"**Validation**\nPassed",
		"**Fragment types**: endpoint=1",
		"4. Monitor fragment usage for optimization",
	} {
		assert.Contains(t, report, want)
	}
}

func TestFormatResearchResult_DefaultPlan(t *testing.T) {
	result := &domain.ResearchResult{
		Plan:       domain.DefaultCallPlan("empty"),
		Stats:      domain.EmptyAPIStats("empty"),
		Validation: domain.PlanValidation{Passed: true},
	}

	report := FormatResearchResult(result)

	assert.Contains(t, report, "**Confidence**: 30.00%")
	assert.Contains(t, report, "**Endpoint**: GET /")
	assert.Contains(t, report, "**Parameters**: {}")
	assert.Contains(t, report, "**Fragment types**: none")
	assert.NotContains(t, report, "**Used Fragments**")
}

func TestResearchService_ListFragments(t *testing.T) {
	f := newResearchFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, "No fragments found for API: petstore", f.service.ListFragments(ctx, "petstore", 10))

	f.fragments.Populate(ctx, "petstore", petstoreSpec())
	listing := f.service.ListFragments(ctx, "petstore", 10)

	assert.Contains(t, listing, "**Available Fragments for petstore**")
	assert.Contains(t, listing, "Found 5 fragments")
	assert.Contains(t, listing, "**Endpoint**: GET /pets")
	assert.Contains(t, listing, "**Schema**: Pet")
	assert.Contains(t, listing, "Description: A pet in the store")
	assert.Contains(t, listing, "Usage: 1 times")
}

func TestResearchService_Cleanup(t *testing.T) {
	f := newResearchFixture(t, nil)
	ctx := context.Background()
	f.fragments.Populate(ctx, "petstore", petstoreSpec())

	assert.Equal(t, "Cleaned up 5 old fragments (older than 0 days)", f.service.Cleanup(ctx, 0))
	assert.Equal(t, "Cleaned up 0 old fragments (older than 30 days)", f.service.Cleanup(ctx, 30))
}
