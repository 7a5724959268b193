package driving

import (
	"context"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// Interpreter turns an intent into a call plan.
type Interpreter interface {
	// Interpret populates the cache from req.Spec when given, gathers
	// candidate fragments and always returns a plan. Model failures degrade
	// to the heuristic scorer, and an empty candidate set yields the default plan.
	Interpret(ctx context.Context, req domain.ResearchRequest) domain.CallPlan
}

// ResearchService is the intent-resolution facade.
type ResearchService interface {
	// Plan resolves an intent into a structured result.
	// Returns domain.ErrRateLimited when the API is throttled.
	Plan(ctx context.Context, req domain.ResearchRequest) (*domain.ResearchResult, error)

	// Research resolves an intent and renders a markdown report. Errors are
	// rendered into the report.
	Research(ctx context.Context, req domain.ResearchRequest) string

	// ListFragments renders a markdown list of the most used fragments of an API.
	ListFragments(ctx context.Context, apiID string, limit int) string

	// Cleanup runs retention and renders a one-line summary.
	Cleanup(ctx context.Context, daysOld int) string
}

// SpecService imports and refreshes specifications from external locations.
type SpecService interface {
	// Import fetches the specification at location, populates its fragments
	// and records the API metadata. Returns the number of fragments stored.
	Import(ctx context.Context, apiID, location string) (int, error)

	// Refresh re-fetches every known API that has a recorded location.
	// Unchanged documents are skipped. Returns the number of APIs refreshed.
	Refresh(ctx context.Context) (int, error)

	// Fetch reads and decodes the specification at location without
	// storing anything.
	Fetch(ctx context.Context, location string) (domain.SpecDocument, error)

	// List returns metadata for every known API.
	List(ctx context.Context) ([]domain.APIMetadata, error)

	// Get returns metadata for one API.
	Get(ctx context.Context, apiID string) (*domain.APIMetadata, error)
}
