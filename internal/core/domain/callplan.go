package domain

// Confidence thresholds for call plans.
const (
	// LowConfidenceThreshold is the confidence below which a plan is flagged.
	LowConfidenceThreshold = 0.7

	// HeuristicConfidenceCap is the highest confidence a heuristic plan may carry.
	HeuristicConfidenceCap = 0.8

	// DefaultPlanConfidence is the confidence of the fallback GET / plan.
	DefaultPlanConfidence = 0.3
)

// PlanSource records which interpretation path produced a plan.
type PlanSource string

// Interpretation paths.
const (
	PlanSourceLLM       PlanSource = "llm"
	PlanSourceHeuristic PlanSource = "heuristic"
	PlanSourceDefault   PlanSource = "default"
)

// CallPlan is a ready-to-use API call configuration. It is transient and
// never persisted.
type CallPlan struct {
	// APIID is the API the plan targets.
	APIID string

	// Endpoint is the request path.
	Endpoint string

	// Method is the HTTP verb.
	Method string

	// Parameters are the values to send.
	Parameters map[string]any

	// Description is a short human-readable summary of the call.
	Description string

	// Reasoning explains why this call was chosen.
	Reasoning string

	// Confidence is in [0, 1].
	Confidence float64

	// FragmentIDs lists every fragment consulted, not only the winner.
	FragmentIDs []string

	// Source is the path that produced the plan.
	Source PlanSource
}

// IsLowConfidence reports whether the plan should prompt for a clearer intent.
func (p CallPlan) IsLowConfidence() bool {
	return p.Confidence < LowConfidenceThreshold
}

// DefaultCallPlan is returned when nothing better can be produced.
func DefaultCallPlan(apiID string) CallPlan {
	return CallPlan{
		APIID:       apiID,
		Endpoint:    "/",
		Method:      "GET",
		Parameters:  map[string]any{},
		Description: "",
		Reasoning:   "heuristic fallback",
		Confidence:  DefaultPlanConfidence,
		FragmentIDs: []string{},
		Source:      PlanSourceDefault,
	}
}

// ResearchRequest is the input of one intent-resolution call.
type ResearchRequest struct {
	// Intent is the natural-language description of what the caller wants.
	Intent string

	// APIID identifies the target API.
	APIID string

	// Spec optionally supplies the full specification for first-contact population.
	Spec SpecDocument

	// Params are extra parameters for the call.
	Params map[string]any
}

// PlanValidation is the outcome of the call guard.
type PlanValidation struct {
	Passed   bool
	Problems []string
}

// ResearchResult is the structured outcome of a research call.
type ResearchResult struct {
	Plan       CallPlan
	Stats      APIStats
	Previews   []Fragment
	Validation PlanValidation
}
