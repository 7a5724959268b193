package driven

// RateLimiter throttles research calls per API.
type RateLimiter interface {
	// Allow reports whether a call for apiID may proceed now and consumes
	// a token if so.
	Allow(apiID string) bool
}

// PlanValidator checks a decoded model response before it becomes a call plan.
type PlanValidator interface {
	// Validate returns an error describing the first violation, or nil.
	Validate(v any) error
}
