package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// mockLLM returns a canned response and records prompts.
type mockLLM struct {
	response string
	err      error
	prompts  []string
	opts     []driven.GenerateOptions
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	return m.response, m.err
}

func (m *mockLLM) ModelName() string            { return "mock-model" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockPromptStore serves one template.
type mockPromptStore struct {
	template string
	err      error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if name != driven.PromptInterpretIntent {
		return "", domain.ErrNotFound
	}
	return m.template, nil
}

func (m *mockPromptStore) Reload() {}

// rejectAll fails every validation.
type rejectAll struct{}

func (rejectAll) Validate(any) error { return errors.New("schema mismatch") }

func newTestInterpreter(t *testing.T, opts ...InterpreterOption) (*Interpreter, *FragmentService) {
	t.Helper()
	fragments := NewFragmentService(memory.NewFragmentStore())
	return NewInterpreter(fragments, opts...), fragments
}

func githubRequest() domain.ResearchRequest {
	return domain.ResearchRequest{
		Intent: "report a bug",
		APIID:  "github",
		Spec:   issuesSpec(),
		Params: map[string]any{"owner": "octo", "repo": "hello"},
	}
}

func TestInterpreter_HeuristicWithoutModel(t *testing.T) {
	interpreter, fragments := newTestInterpreter(t)

	plan := interpreter.Interpret(context.Background(), githubRequest())

	assert.Equal(t, domain.PlanSourceHeuristic, plan.Source)
	assert.Equal(t, "github", plan.APIID)
	assert.Equal(t, "/issues", plan.Endpoint)
	assert.Equal(t, "POST", plan.Method)
	assert.LessOrEqual(t, plan.Confidence, domain.HeuristicConfidenceCap)
	assert.NotEmpty(t, plan.Reasoning)
	assert.Equal(t, "octo", plan.Parameters["owner"])
	assert.Equal(t, []string{EndpointFragmentID("github", "post", "/issues")}, plan.FragmentIDs)

	stats := fragments.Stats(context.Background(), "github")
	assert.Equal(t, 1, stats.TotalFragments)
	assert.Equal(t, 1, stats.TotalUsage)
}

func TestInterpreter_ModelFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		llm  *mockLLM
	}{
		{name: "generate error", llm: &mockLLM{err: errors.New("connection refused")}},
		{name: "not json", llm: &mockLLM{response: "I think you want to POST an issue."}},
		{name: "missing confidence", llm: &mockLLM{response: `{"endpoint":"/issues","method":"POST","parameters":{}}`}},
		{name: "missing parameters", llm: &mockLLM{response: `{"endpoint":"/issues","method":"POST","confidence":0.9}`}},
		{name: "empty endpoint", llm: &mockLLM{response: `{"endpoint":"","method":"POST","parameters":{},"confidence":0.9}`}},
		{name: "parameters not an object", llm: &mockLLM{response: `{"endpoint":"/i","method":"POST","parameters":[1],"confidence":0.9}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newRecordingMetrics()
			interpreter, _ := newTestInterpreter(t, WithLLM(tt.llm, driven.GenerateOptions{}), WithInterpreterMetrics(metrics))

			plan := interpreter.Interpret(context.Background(), githubRequest())

			assert.Equal(t, domain.PlanSourceHeuristic, plan.Source)
			assert.LessOrEqual(t, plan.Confidence, domain.HeuristicConfidenceCap)
			assert.NotEmpty(t, plan.Reasoning)
			assert.Len(t, tt.llm.prompts, 1)
			assert.Equal(t, 1, metrics.llmCalls)
			assert.Equal(t, []string{"heuristic"}, metrics.sources)
		})
	}
}

func TestInterpreter_ModelPlan(t *testing.T) {
	llm := &mockLLM{response: `Here you go:
{
  "endpoint": "/issues",
  "method": "post",
  "parameters": {"title": "Crash on start", "labels": ["bug"], "milestone": 3},
  "confidence": 0.92,
  "reasoning": "Creating an issue reports the bug",
  "fragment_ids": ["ignored"]
}`}
	interpreter, _ := newTestInterpreter(t, WithLLM(llm, driven.GenerateOptions{MaxTokens: 500, Temperature: 0.2}))

	plan := interpreter.Interpret(context.Background(), githubRequest())

	assert.Equal(t, domain.PlanSourceLLM, plan.Source)
	assert.Equal(t, "/issues", plan.Endpoint)
	assert.Equal(t, "POST", plan.Method)
	assert.InDelta(t, 0.92, plan.Confidence, 1e-9)
	assert.Equal(t, "Creating an issue reports the bug", plan.Reasoning)
	assert.Equal(t, plan.Reasoning, plan.Description)
	assert.Equal(t, int64(3), plan.Parameters["milestone"])
	assert.Equal(t, []any{"bug"}, plan.Parameters["labels"])
	assert.Equal(t, []string{EndpointFragmentID("github", "post", "/issues")}, plan.FragmentIDs)
	require.Len(t, llm.opts, 1)
	assert.Equal(t, 500, llm.opts[0].MaxTokens)
}

func TestInterpreter_ModelPlanNormalisesValues(t *testing.T) {
	llm := &mockLLM{response: `{"endpoint":"/x","method":"get","parameters":null,"confidence":7}`}
	interpreter, _ := newTestInterpreter(t, WithLLM(llm, driven.GenerateOptions{}))

	plan := interpreter.Interpret(context.Background(), domain.ResearchRequest{Intent: "get x", APIID: "api"})

	assert.Equal(t, domain.PlanSourceLLM, plan.Source)
	assert.InDelta(t, 1.0, plan.Confidence, 1e-9)
	assert.NotNil(t, plan.Parameters)
	assert.Empty(t, plan.Parameters)
	assert.Empty(t, plan.FragmentIDs)
}

func TestInterpreter_ValidatorRejects(t *testing.T) {
	llm := &mockLLM{response: `{"endpoint":"/issues","method":"POST","parameters":{},"confidence":0.9}`}
	interpreter, _ := newTestInterpreter(t, WithLLM(llm, driven.GenerateOptions{}), WithPlanValidator(rejectAll{}))

	plan := interpreter.Interpret(context.Background(), githubRequest())

	assert.Equal(t, domain.PlanSourceHeuristic, plan.Source)
}

func TestInterpreter_PromptTemplate(t *testing.T) {
	llm := &mockLLM{err: errors.New("offline")}
	prompts := &mockPromptStore{template: "intent=%s api=%s\n%s\nparams=%s"}
	interpreter, _ := newTestInterpreter(t, WithLLM(llm, driven.GenerateOptions{}), WithPromptStore(prompts))

	interpreter.Interpret(context.Background(), githubRequest())

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "intent=report a bug api=github\n")
	assert.Contains(t, prompt, "Endpoint: POST /issues")
	assert.Contains(t, prompt, `params={"owner":"octo","repo":"hello"}`)
}

func TestInterpreter_PromptStoreFailureUsesBuiltin(t *testing.T) {
	llm := &mockLLM{err: errors.New("offline")}
	prompts := &mockPromptStore{err: errors.New("permission denied")}
	interpreter, _ := newTestInterpreter(t, WithLLM(llm, driven.GenerateOptions{}), WithPromptStore(prompts))

	interpreter.Interpret(context.Background(), domain.ResearchRequest{Intent: "list users", APIID: "empty"})

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Request: list users")
	assert.Contains(t, llm.prompts[0], "No API fragments available.")
	assert.Contains(t, llm.prompts[0], "Extra parameters: none")
}

func TestInterpreter_NoFragments(t *testing.T) {
	metrics := newRecordingMetrics()
	interpreter, _ := newTestInterpreter(t, WithInterpreterMetrics(metrics))

	plan := interpreter.Interpret(context.Background(), domain.ResearchRequest{Intent: "do things", APIID: "unknown"})

	assert.Equal(t, domain.DefaultCallPlan("unknown"), plan)
	assert.Equal(t, []string{"default"}, metrics.sources)
}

func TestInterpreter_FallbackQueryUsesEndpoints(t *testing.T) {
	interpreter, fragments := newTestInterpreter(t)
	ctx := context.Background()
	fragments.Populate(ctx, "petstore", petstoreSpec())

	plan := interpreter.Interpret(ctx, domain.ResearchRequest{Intent: "zzz", APIID: "petstore"})

	assert.Len(t, plan.FragmentIDs, 3)
	assert.NotContains(t, plan.FragmentIDs, SchemaFragmentID("petstore", "Pet"))
}

func TestRenderFragmentContext(t *testing.T) {
	fragments := []domain.Fragment{
		{
			ID:   "e1",
			Type: domain.FragmentTypeEndpoint,
			Content: map[string]any{
				domain.ContentKeyPath:   "/pets",
				domain.ContentKeyMethod: "GET",
			},
			Metadata: domain.FragmentMetadata{
				Summary:     "List pets",
				OperationID: "listPets",
				Tags:        []string{"pets"},
				Keywords:    []string{"list", "pets"},
			},
		},
		{
			ID:       "s1",
			Type:     domain.FragmentTypeSchema,
			Content:  map[string]any{domain.ContentKeyName: "Pet"},
			Metadata: domain.FragmentMetadata{Type: "object"},
		},
		{ID: "p1", Type: domain.FragmentTypeParameter},
	}

	want := "Fragment ID: e1\n" +
		"Endpoint: GET /pets\n" +
		"Summary: List pets\n" +
		"Description: No description\n" +
		"Operation ID: listPets\n" +
		"Tags: pets\n" +
		"Keywords: list, pets" +
		"\n---\n" +
		"Fragment ID: s1\n" +
		"Schema: Pet\n" +
		"Type: object\n" +
		"Description: No description"

	assert.Equal(t, want, RenderFragmentContext(fragments))
	assert.Equal(t, "No API fragments available.", RenderFragmentContext(nil))
}
