package driven

import "time"

// Metrics records operational counters and timings.
// All methods must be safe for concurrent use and must never block.
type Metrics interface {
	// FragmentLookup counts direct lookups by outcome.
	FragmentLookup(hit bool)

	// FragmentsStored counts fragments written for an API.
	FragmentsStored(apiID string, n int)

	// IntentSearch counts intent searches by whether anything matched.
	IntentSearch(matched bool)

	// Interpretation observes one produced plan, labelled by its source.
	Interpretation(source string, confidence float64)

	// LLMRequest observes one model call.
	LLMRequest(provider string, ok bool, elapsed time.Duration)

	// CleanupDeleted counts fragments removed by retention.
	CleanupDeleted(n int)

	// ResearchRejected counts call guard failures, labelled by reason.
	ResearchRejected(reason string)

	// StoreError counts store failures, labelled by operation.
	StoreError(op string)
}
