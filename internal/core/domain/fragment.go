package domain

import "time"

// FragmentType classifies what slice of a specification a fragment holds.
type FragmentType string

// Fragment types. Only endpoint and schema are produced by extraction;
// parameter and security are reserved and stored the same way.
const (
	FragmentTypeEndpoint  FragmentType = "endpoint"
	FragmentTypeSchema    FragmentType = "schema"
	FragmentTypeParameter FragmentType = "parameter"
	FragmentTypeSecurity  FragmentType = "security"
)

// IsValid returns true if the fragment type is recognised.
func (t FragmentType) IsValid() bool {
	switch t {
	case FragmentTypeEndpoint, FragmentTypeSchema, FragmentTypeParameter, FragmentTypeSecurity:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t FragmentType) String() string {
	return string(t)
}

// AllFragmentTypes returns every known fragment type.
func AllFragmentTypes() []FragmentType {
	return []FragmentType{
		FragmentTypeEndpoint,
		FragmentTypeSchema,
		FragmentTypeParameter,
		FragmentTypeSecurity,
	}
}

// Content keys used inside Fragment.Content.
const (
	ContentKeyPath      = "path"
	ContentKeyMethod    = "method"
	ContentKeyOperation = "operation"
	ContentKeyName      = "name"
	ContentKeySchema    = "schema"
)

// Fragment is the atomic retrievable unit of an API specification.
// Components outside the store always hold fragments by value.
type Fragment struct {
	// ID is derived deterministically from the API id, type and identifying key.
	ID string

	// APIID groups fragments belonging to one API.
	APIID string

	// Type is the fragment kind.
	Type FragmentType

	// Content is the raw payload. For endpoints it holds path, method and
	// operation; for schemas it holds name and schema.
	Content map[string]any

	// Metadata holds search-oriented fields derived at extraction time.
	Metadata FragmentMetadata

	// Embedding is reserved for semantic search. It is never populated by
	// extraction and may be nil.
	Embedding []float32

	// UsageCount is incremented on every successful lookup or match.
	UsageCount int

	// LastUsed is when UsageCount last changed. Zero means never used.
	LastUsed time.Time

	// CreatedAt is set once on first insert.
	CreatedAt time.Time

	// UpdatedAt is set on every content or metadata mutation.
	UpdatedAt time.Time
}

// FragmentMetadata is the searchable description of a fragment.
// It is persisted as a JSON blob and keyword search matches against that blob.
type FragmentMetadata struct {
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description"`
	OperationID string   `json:"operation_id,omitempty"`
	Tags        []string `json:"tags"`
	Keywords    []string `json:"keywords"`
	Type        string   `json:"type,omitempty"`
}

// Path returns the endpoint path, or empty for non-endpoint fragments.
func (f *Fragment) Path() string {
	return f.contentString(ContentKeyPath)
}

// Method returns the upper-cased HTTP method of an endpoint fragment.
func (f *Fragment) Method() string {
	return f.contentString(ContentKeyMethod)
}

// Name returns the schema name of a schema fragment.
func (f *Fragment) Name() string {
	return f.contentString(ContentKeyName)
}

// IsEndpoint reports whether the fragment describes an endpoint.
func (f *Fragment) IsEndpoint() bool {
	return f.Type == FragmentTypeEndpoint
}

func (f *Fragment) contentString(key string) string {
	if f.Content == nil {
		return ""
	}
	s, _ := f.Content[key].(string)
	return s
}

// DefaultFragmentLimit caps structured queries when no limit is given.
const DefaultFragmentLimit = 10

// FragmentQuery is a structured filter over stored fragments.
type FragmentQuery struct {
	// APIID restricts results to one API when set.
	APIID string

	// Types restricts results to the given fragment types when non-empty.
	Types []FragmentType

	// Limit caps the result count. Zero or negative means DefaultFragmentLimit.
	Limit int

	// MinConfidence is reserved for semantic ranking and currently ignored.
	MinConfidence float64
}

// EffectiveLimit returns the limit to apply.
func (q FragmentQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultFragmentLimit
	}
	return q.Limit
}

// MatchesType reports whether t passes the type filter.
func (q FragmentQuery) MatchesType(t FragmentType) bool {
	if len(q.Types) == 0 {
		return true
	}
	for _, want := range q.Types {
		if want == t {
			return true
		}
	}
	return false
}

// RelationshipReferences links an endpoint to a schema it references.
const RelationshipReferences = "references"

// Relationship is a directed link between two fragments.
// The pair (ParentID, ChildID) is unique.
type Relationship struct {
	ParentID string
	ChildID  string
	Type     string
}
