package driving

import (
	"context"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// FragmentService is the fragment cache. Every operation absorbs store
// failures: they are logged and reported through a sentinel return value
// (false, nil, empty slice or zero) so callers are never interrupted.
type FragmentService interface {
	// Store upserts a fragment. Returns false on failure.
	Store(ctx context.Context, fragment domain.Fragment) bool

	// Get returns a fragment by ID and records a usage. Returns nil if the
	// fragment is missing or the store failed.
	Get(ctx context.Context, id string) *domain.Fragment

	// Find returns fragments matching the query and records a usage for each.
	Find(ctx context.Context, query domain.FragmentQuery) []domain.Fragment

	// FindByIntent returns up to ten fragments of one API whose metadata
	// matches any keyword of the intent, and records a usage for each.
	FindByIntent(ctx context.Context, apiID, intent string) []domain.Fragment

	// Extract decomposes a specification into fragments without storing them.
	Extract(apiID string, spec domain.SpecDocument) []domain.Fragment

	// Populate extracts and stores every fragment of a specification and links
	// endpoints to the schemas they reference. Returns the number stored.
	Populate(ctx context.Context, apiID string, spec domain.SpecDocument) int

	// Relationships returns the links where the fragment is parent or child.
	// Returns an empty slice when none exist or no relationship store is set.
	Relationships(ctx context.Context, id string) []domain.Relationship

	// Cleanup deletes never-used fragments older than daysOld days.
	// Returns the number deleted.
	Cleanup(ctx context.Context, daysOld int) int

	// Stats aggregates usage for one API.
	Stats(ctx context.Context, apiID string) domain.APIStats
}
