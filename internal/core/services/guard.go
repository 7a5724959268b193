package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// DefaultMaxParamLength is the longest string parameter a plan may carry.
const DefaultMaxParamLength = 10000

var allowedMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "DELETE": {}, "PATCH": {},
}

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)union.*select`),
	regexp.MustCompile(`(?i);\s*rm\s+`),
	regexp.MustCompile(`\.\./`),
}

// CallGuard throttles research per API and checks plans before they are
// handed to a caller.
type CallGuard struct {
	limiter        driven.RateLimiter
	maxParamLength int
}

// NewCallGuard creates a guard. A nil limiter disables throttling.
func NewCallGuard(limiter driven.RateLimiter, maxParamLength int) *CallGuard {
	if maxParamLength <= 0 {
		maxParamLength = DefaultMaxParamLength
	}
	return &CallGuard{limiter: limiter, maxParamLength: maxParamLength}
}

// Allow consumes one research call for apiID.
func (g *CallGuard) Allow(apiID string) error {
	if g.limiter == nil || g.limiter.Allow(apiID) {
		return nil
	}
	return fmt.Errorf("%w: api %s", domain.ErrRateLimited, apiID)
}

// guardProblem pairs a human-readable message with its sentinel.
type guardProblem struct {
	err     error
	message string
}

// Validate checks a plan. spec may be nil, in which case the endpoint is
// not checked against declared paths.
func (g *CallGuard) Validate(plan domain.CallPlan, spec domain.SpecDocument) domain.PlanValidation {
	result, _ := g.validate(plan, spec)
	return result
}

// validate also returns the short reason label of each problem.
func (g *CallGuard) validate(plan domain.CallPlan, spec domain.SpecDocument) (domain.PlanValidation, []string) {
	problems := g.check(plan, spec)
	result := domain.PlanValidation{Passed: len(problems) == 0, Problems: []string{}}
	reasons := make([]string, 0, len(problems))
	for _, p := range problems {
		result.Problems = append(result.Problems, p.message)
		reasons = append(reasons, reasonLabel(p.err))
	}
	return result, reasons
}

func (g *CallGuard) check(plan domain.CallPlan, spec domain.SpecDocument) []guardProblem {
	var problems []guardProblem

	if _, ok := allowedMethods[strings.ToUpper(plan.Method)]; !ok {
		problems = append(problems, guardProblem{
			err:     domain.ErrMethodNotAllowed,
			message: fmt.Sprintf("method %q is not allowed", plan.Method),
		})
	}

	walkStrings("", plan.Parameters, func(key, value string) {
		if len(value) > g.maxParamLength {
			problems = append(problems, guardProblem{
				err:     domain.ErrUnsafeParameter,
				message: fmt.Sprintf("parameter %s exceeds %d characters", key, g.maxParamLength),
			})
		}
		for _, re := range dangerousPatterns {
			if re.MatchString(value) {
				problems = append(problems, guardProblem{
					err:     domain.ErrUnsafeParameter,
					message: fmt.Sprintf("parameter %s matches unsafe pattern %s", key, re.String()),
				})
				break
			}
		}
	})

	if len(spec) > 0 && plan.Source != domain.PlanSourceDefault && !spec.HasPath(plan.Endpoint) {
		problems = append(problems, guardProblem{
			err:     domain.ErrUnknownEndpoint,
			message: fmt.Sprintf("endpoint %s is not declared by the specification", plan.Endpoint),
		})
	}
	return problems
}

func reasonLabel(err error) string {
	switch err {
	case domain.ErrRateLimited:
		return "rate_limited"
	case domain.ErrMethodNotAllowed:
		return "method_not_allowed"
	case domain.ErrUnsafeParameter:
		return "unsafe_parameter"
	case domain.ErrUnknownEndpoint:
		return "unknown_endpoint"
	default:
		return "other"
	}
}

// walkStrings calls fn for every string value nested in v. Keys are joined
// with dots; list elements use their index.
func walkStrings(prefix string, v any, fn func(key, value string)) {
	switch node := v.(type) {
	case string:
		fn(prefix, node)
	case map[string]any:
		for _, k := range sortedKeys(node) {
			walkStrings(joinKey(prefix, k), node[k], fn)
		}
	case []any:
		for i, child := range node {
			walkStrings(joinKey(prefix, fmt.Sprint(i)), child, fn)
		}
	case []string:
		for i, child := range node {
			fn(joinKey(prefix, fmt.Sprint(i)), child)
		}
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
