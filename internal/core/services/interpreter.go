package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

// Ensure Interpreter implements the interface.
var _ driving.Interpreter = (*Interpreter)(nil)

// fallbackFragmentLimit caps the broad query used when intent search is empty.
const fallbackFragmentLimit = 10

// fallbackInterpretPrompt is used when no prompt store is configured.
const fallbackInterpretPrompt = `Pick the API call that best fulfils the request, using only the endpoints listed.

Request: %s
API: %s

Fragments:
%s

Extra parameters: %s

Answer with one JSON object with the keys endpoint, method, parameters,
confidence (0 to 1), reasoning and fragment_ids.`

// Interpreter turns an intent into a call plan. It asks the model first
// and falls back to the heuristic scorer on any model failure.
type Interpreter struct {
	fragments driving.FragmentService
	llm       driven.LLMService
	prompts   driven.PromptStore
	validator driven.PlanValidator
	metrics   driven.Metrics
	heuristic *HeuristicScorer
	opts      driven.GenerateOptions
}

// InterpreterOption configures optional collaborators.
type InterpreterOption func(*Interpreter)

// WithLLM sets the model used for interpretation.
func WithLLM(llm driven.LLMService, opts driven.GenerateOptions) InterpreterOption {
	return func(i *Interpreter) {
		i.llm = llm
		i.opts = opts
	}
}

// WithPromptStore sets the source of the interpretation prompt.
func WithPromptStore(ps driven.PromptStore) InterpreterOption {
	return func(i *Interpreter) { i.prompts = ps }
}

// WithPlanValidator checks decoded model output before it is accepted.
func WithPlanValidator(v driven.PlanValidator) InterpreterOption {
	return func(i *Interpreter) { i.validator = v }
}

// WithStemmer enables stem comparison in the heuristic scorer.
func WithStemmer(s driven.Stemmer) InterpreterOption {
	return func(i *Interpreter) { i.heuristic = NewHeuristicScorer(s) }
}

// WithInterpreterMetrics attaches a metrics recorder.
func WithInterpreterMetrics(m driven.Metrics) InterpreterOption {
	return func(i *Interpreter) { i.metrics = m }
}

// NewInterpreter creates an interpreter over the fragment cache.
func NewInterpreter(fragments driving.FragmentService, opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		fragments: fragments,
		heuristic: NewHeuristicScorer(nil),
		opts: driven.GenerateOptions{
			MaxTokens:   1000,
			Temperature: 0.1,
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret resolves an intent. It never fails: every error path ends in
// a heuristic or default plan.
func (i *Interpreter) Interpret(ctx context.Context, req domain.ResearchRequest) domain.CallPlan {
	logger.Section("Interpretation")

	if len(req.Spec) > 0 {
		n := i.fragments.Populate(ctx, req.APIID, req.Spec)
		logger.Info("populated %d fragments for %s", n, req.APIID)
	}

	candidates := i.fragments.FindByIntent(ctx, req.APIID, req.Intent)
	if len(candidates) == 0 {
		logger.Warn("no fragments matched intent %q for %s, using most used endpoints", req.Intent, req.APIID)
		candidates = i.fragments.Find(ctx, domain.FragmentQuery{
			APIID: req.APIID,
			Types: []domain.FragmentType{domain.FragmentTypeEndpoint},
			Limit: fallbackFragmentLimit,
		})
	}
	logger.Debug("%d candidate fragments", len(candidates))

	plan, err := i.interpretWithModel(ctx, req, candidates)
	if err != nil {
		if !errors.Is(err, domain.ErrLLMUnavailable) {
			logger.Warn("model interpretation failed, using heuristic: %v", err)
		}
		plan = i.heuristic.Plan(req.APIID, req.Intent, candidates, req.Params)
	}

	if plan.IsLowConfidence() {
		logger.Warn("low confidence %.2f for intent %q", plan.Confidence, req.Intent)
	}
	if i.metrics != nil {
		i.metrics.Interpretation(string(plan.Source), plan.Confidence)
	}
	return plan
}

func (i *Interpreter) interpretWithModel(ctx context.Context, req domain.ResearchRequest, candidates []domain.Fragment) (domain.CallPlan, error) {
	if i.llm == nil {
		return domain.CallPlan{}, domain.ErrLLMUnavailable
	}

	prompt, err := i.buildPrompt(req, candidates)
	if err != nil {
		return domain.CallPlan{}, err
	}

	start := time.Now()
	text, err := i.llm.Generate(ctx, prompt, i.opts)
	if i.metrics != nil {
		i.metrics.LLMRequest(i.llm.ModelName(), err == nil, time.Since(start))
	}
	if err != nil {
		return domain.CallPlan{}, fmt.Errorf("generate: %w", err)
	}

	obj, err := ExtractJSONObject(text)
	if err != nil {
		return domain.CallPlan{}, fmt.Errorf("parse response: %w", err)
	}
	if i.validator != nil {
		if err := i.validator.Validate(obj); err != nil {
			return domain.CallPlan{}, fmt.Errorf("validate response: %w", err)
		}
	}

	plan, err := planFromResponse(req.APIID, obj)
	if err != nil {
		return domain.CallPlan{}, err
	}
	plan.FragmentIDs = fragmentIDs(candidates)
	return plan, nil
}

func (i *Interpreter) buildPrompt(req domain.ResearchRequest, candidates []domain.Fragment) (string, error) {
	template := fallbackInterpretPrompt
	if i.prompts != nil {
		loaded, err := i.prompts.Load(driven.PromptInterpretIntent)
		if err != nil {
			logger.Warn("load prompt %s: %v", driven.PromptInterpretIntent, err)
		} else {
			template = loaded
		}
	}

	params := "none"
	if len(req.Params) > 0 {
		raw, err := json.Marshal(req.Params)
		if err != nil {
			return "", fmt.Errorf("encode parameters: %w", err)
		}
		params = string(raw)
	}

	return fmt.Sprintf(template, req.Intent, req.APIID, RenderFragmentContext(candidates), params), nil
}

// RenderFragmentContext renders candidates as the model-facing context block.
func RenderFragmentContext(fragments []domain.Fragment) string {
	if len(fragments) == 0 {
		return "No API fragments available."
	}

	parts := make([]string, 0, len(fragments))
	for i := range fragments {
		f := &fragments[i]
		var b strings.Builder
		switch f.Type {
		case domain.FragmentTypeEndpoint:
			method := f.Method()
			if method == "" {
				method = "GET"
			}
			fmt.Fprintf(&b, "Fragment ID: %s\n", f.ID)
			fmt.Fprintf(&b, "Endpoint: %s %s\n", method, f.Path())
			fmt.Fprintf(&b, "Summary: %s\n", orDefault(f.Metadata.Summary, "No summary"))
			fmt.Fprintf(&b, "Description: %s\n", orDefault(f.Metadata.Description, "No description"))
			fmt.Fprintf(&b, "Operation ID: %s\n", f.Metadata.OperationID)
			fmt.Fprintf(&b, "Tags: %s\n", strings.Join(f.Metadata.Tags, ", "))
			fmt.Fprintf(&b, "Keywords: %s", strings.Join(f.Metadata.Keywords, ", "))
		case domain.FragmentTypeSchema:
			fmt.Fprintf(&b, "Fragment ID: %s\n", f.ID)
			fmt.Fprintf(&b, "Schema: %s\n", f.Name())
			fmt.Fprintf(&b, "Type: %s\n", orDefault(f.Metadata.Type, "object"))
			fmt.Fprintf(&b, "Description: %s", orDefault(f.Metadata.Description, "No description"))
		default:
			continue
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n---\n")
}

// planFromResponse maps a decoded model object onto a plan. The keys
// endpoint, method, parameters and confidence are required.
func planFromResponse(apiID string, obj map[string]any) (domain.CallPlan, error) {
	endpoint, ok := obj["endpoint"].(string)
	if !ok || endpoint == "" {
		return domain.CallPlan{}, fmt.Errorf("%w: missing endpoint", domain.ErrInvalidInput)
	}
	method, ok := obj["method"].(string)
	if !ok || method == "" {
		return domain.CallPlan{}, fmt.Errorf("%w: missing method", domain.ErrInvalidInput)
	}
	params, ok := obj["parameters"].(map[string]any)
	if !ok {
		if obj["parameters"] != nil {
			return domain.CallPlan{}, fmt.Errorf("%w: parameters is not an object", domain.ErrInvalidInput)
		}
		if _, present := obj["parameters"]; !present {
			return domain.CallPlan{}, fmt.Errorf("%w: missing parameters", domain.ErrInvalidInput)
		}
		params = map[string]any{}
	}
	confidence, ok := toFloat(obj["confidence"])
	if !ok {
		return domain.CallPlan{}, fmt.Errorf("%w: missing confidence", domain.ErrInvalidInput)
	}
	confidence = clamp(confidence, 0, 1)
	reasoning, _ := obj["reasoning"].(string)

	return domain.CallPlan{
		APIID:       apiID,
		Endpoint:    endpoint,
		Method:      strings.ToUpper(method),
		Parameters:  normaliseNumbers(params).(map[string]any),
		Description: reasoning,
		Reasoning:   reasoning,
		Confidence:  confidence,
		Source:      domain.PlanSourceLLM,
	}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// normaliseNumbers replaces json.Number values with int64 or float64.
func normaliseNumbers(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = normaliseNumbers(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = normaliseNumbers(child)
		}
		return out
	case json.Number:
		if n, err := node.Int64(); err == nil {
			return n
		}
		f, _ := node.Float64()
		return f
	default:
		return v
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
