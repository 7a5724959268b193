package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// FragmentStore persists fragments with usage telemetry.
// Implementations must allow concurrent access without a global lock;
// writes to different fragment ids must not block each other.
type FragmentStore interface {
	// Save upserts a fragment by ID. A new fragment is inserted as given.
	// An existing fragment has only content, metadata, updated_at and
	// embedding overwritten; usage fields and created_at are preserved.
	Save(ctx context.Context, fragment *domain.Fragment) error

	// Get retrieves a fragment by ID without touching usage telemetry.
	// Returns domain.ErrNotFound if the fragment does not exist.
	Get(ctx context.Context, id string) (*domain.Fragment, error)

	// Find returns fragments matching the query ordered by usage count
	// descending, then updated_at descending.
	Find(ctx context.Context, query domain.FragmentQuery) ([]domain.Fragment, error)

	// Search returns fragments of one API whose serialised metadata or type
	// contains keyword (case-insensitive), ordered by usage count descending.
	Search(ctx context.Context, apiID, keyword string, limit int) ([]domain.Fragment, error)

	// IncrementUsage atomically adds one to the usage counter and sets last_used.
	IncrementUsage(ctx context.Context, id string, at time.Time) error

	// DeleteUnused removes fragments with zero usage whose last_used is unset
	// or older than cutoff. Returns the number of deleted fragments.
	DeleteUnused(ctx context.Context, cutoff time.Time) (int, error)

	// Stats aggregates counts and usage for one API.
	Stats(ctx context.Context, apiID string) (*domain.APIStats, error)
}

// RelationshipStore persists directed links between fragments.
type RelationshipStore interface {
	// SaveRelationship upserts a link. The (parent, child) pair is unique.
	SaveRelationship(ctx context.Context, rel domain.Relationship) error

	// ListRelationships returns links where the fragment is parent or child.
	ListRelationships(ctx context.Context, fragmentID string) ([]domain.Relationship, error)
}

// APIMetadataStore persists per-API bookkeeping.
type APIMetadataStore interface {
	// SaveAPIMetadata creates or replaces the metadata for an API.
	SaveAPIMetadata(ctx context.Context, meta domain.APIMetadata) error

	// GetAPIMetadata retrieves metadata for an API.
	// Returns domain.ErrNotFound if the API is unknown.
	GetAPIMetadata(ctx context.Context, apiID string) (*domain.APIMetadata, error)

	// ListAPIMetadata returns metadata for every known API ordered by API id.
	ListAPIMetadata(ctx context.Context) ([]domain.APIMetadata, error)
}
