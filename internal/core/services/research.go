package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

// Ensure ResearchService implements the interface.
var _ driving.ResearchService = (*ResearchService)(nil)

// previewCount is how many consulted fragments a report describes.
const previewCount = 3

// ResearchService composes interpretation, statistics and the call guard
// into the agent-facing research operation.
type ResearchService struct {
	interpreter driving.Interpreter
	fragments   driving.FragmentService
	guard       *CallGuard
	metrics     driven.Metrics
}

// NewResearchService creates a research service. A nil guard disables
// throttling and plan validation.
func NewResearchService(
	interpreter driving.Interpreter,
	fragments driving.FragmentService,
	guard *CallGuard,
	metrics driven.Metrics,
) *ResearchService {
	return &ResearchService{
		interpreter: interpreter,
		fragments:   fragments,
		guard:       guard,
		metrics:     metrics,
	}
}

// Plan resolves an intent into a structured result.
func (s *ResearchService) Plan(ctx context.Context, req domain.ResearchRequest) (*domain.ResearchResult, error) {
	req.Intent = strings.TrimSpace(req.Intent)
	req.APIID = strings.TrimSpace(req.APIID)
	if req.Intent == "" {
		return nil, fmt.Errorf("%w: intent is required", domain.ErrInvalidInput)
	}
	if req.APIID == "" {
		return nil, fmt.Errorf("%w: api id is required", domain.ErrInvalidInput)
	}

	if s.guard != nil {
		if err := s.guard.Allow(req.APIID); err != nil {
			s.rejected("rate_limited")
			return nil, err
		}
	}

	start := time.Now()
	plan := s.interpreter.Interpret(ctx, req)
	stats := s.fragments.Stats(ctx, req.APIID)

	previews := make([]domain.Fragment, 0, previewCount)
	for _, id := range plan.FragmentIDs {
		if len(previews) == previewCount {
			break
		}
		if f := s.fragments.Get(ctx, id); f != nil {
			previews = append(previews, *f)
		}
	}

	validation := domain.PlanValidation{Passed: true, Problems: []string{}}
	if s.guard != nil {
		var reasons []string
		validation, reasons = s.guard.validate(plan, req.Spec)
		for _, r := range reasons {
			s.rejected(r)
		}
	}

	logger.Info("research on %s resolved to %s %s (%.2f, %s) in %s",
		req.APIID, plan.Method, plan.Endpoint, plan.Confidence, plan.Source, time.Since(start))

	return &domain.ResearchResult{
		Plan:       plan,
		Stats:      stats,
		Previews:   previews,
		Validation: validation,
	}, nil
}

// Research resolves an intent and renders the report. Failures are
// rendered as text.
func (s *ResearchService) Research(ctx context.Context, req domain.ResearchRequest) string {
	result, err := s.Plan(ctx, req)
	if err != nil {
		logger.Error("research on %s failed: %v", req.APIID, err)
		return fmt.Sprintf("Fragment-based API research failed: %v", err)
	}
	return FormatResearchResult(result)
}

// ListFragments renders the most used fragments of an API.
func (s *ResearchService) ListFragments(ctx context.Context, apiID string, limit int) string {
	fragments := s.fragments.Find(ctx, domain.FragmentQuery{APIID: apiID, Limit: limit})
	if len(fragments) == 0 {
		return fmt.Sprintf("No fragments found for API: %s", apiID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Available Fragments for %s**\n", apiID)
	fmt.Fprintf(&b, "Found %d fragments\n\n", len(fragments))
	for i := range fragments {
		f := &fragments[i]
		if f.IsEndpoint() {
			fmt.Fprintf(&b, "%d. **Endpoint**: %s %s\n", i+1, f.Method(), f.Path())
			fmt.Fprintf(&b, "   Summary: %s\n", orDefault(f.Metadata.Summary, "No summary"))
			fmt.Fprintf(&b, "   Usage: %d times\n", f.UsageCount)
		} else {
			fmt.Fprintf(&b, "%d. **Schema**: %s\n", i+1, orDefault(f.Name(), "Unknown"))
			fmt.Fprintf(&b, "   Type: %s\n", orDefault(f.Metadata.Type, "object"))
			fmt.Fprintf(&b, "   Description: %s\n", orDefault(f.Metadata.Description, "No description"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Cleanup runs retention and summarises the outcome.
func (s *ResearchService) Cleanup(ctx context.Context, daysOld int) string {
	deleted := s.fragments.Cleanup(ctx, daysOld)
	return fmt.Sprintf("Cleaned up %d old fragments (older than %d days)", deleted, daysOld)
}

func (s *ResearchService) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.ResearchRejected(reason)
	}
}

// FormatResearchResult renders a research result as markdown.
func FormatResearchResult(r *domain.ResearchResult) string {
	plan := r.Plan
	params, err := json.MarshalIndent(plan.Parameters, "", "  ")
	if err != nil {
		params = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("**API Research Results**\n")
	fmt.Fprintf(&b, "**API ID**: %s\n", plan.APIID)
	fmt.Fprintf(&b, "**Confidence**: %.2f%%\n", plan.Confidence*100)
	fmt.Fprintf(&b, "**Low confidence**: %t\n", plan.IsLowConfidence())
	fmt.Fprintf(&b, "**Source**: %s\n", plan.Source)
	fmt.Fprintf(&b, "**Reasoning**: %s\n", plan.Reasoning)

	b.WriteString("\n**Recommended API Call**\n")
	fmt.Fprintf(&b, "**Endpoint**: %s %s\n", plan.Method, plan.Endpoint)
	fmt.Fprintf(&b, "**Parameters**: %s\n", params)
	fmt.Fprintf(&b, "**Description**: %s\n", plan.Description)

	if len(plan.FragmentIDs) > 0 {
		b.WriteString("\n**Used Fragments**\n")
		fmt.Fprintf(&b, "Loaded %d relevant fragments\n", len(plan.FragmentIDs))
		for i := range r.Previews {
			f := &r.Previews[i]
			if f.IsEndpoint() {
				fmt.Fprintf(&b, "- %s %s: %s\n", f.Method(), f.Path(), f.Metadata.Summary)
			} else {
				fmt.Fprintf(&b, "- Schema: %s\n", f.Name())
			}
		}
	}

	b.WriteString("\n**Validation**\n")
	if r.Validation.Passed {
		b.WriteString("Passed\n")
	} else {
		for _, p := range r.Validation.Problems {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	b.WriteString("\n**API Statistics**\n")
	fmt.Fprintf(&b, "**Total fragments**: %d\n", r.Stats.TotalFragments)
	fmt.Fprintf(&b, "**Fragment types**: %s\n", formatTypeCounts(r.Stats.FragmentStats))
	fmt.Fprintf(&b, "**Total usage**: %d\n", r.Stats.TotalUsage)
	fmt.Fprintf(&b, "**Average usage**: %.2f\n", r.Stats.AverageUsage)

	b.WriteString("\n**Recommendations**\n")
	b.WriteString("1. Use the recommended API call above\n")
	b.WriteString("2. If confidence is low, provide more specific intent\n")
	b.WriteString("3. Consider adding more fragments to the cache\n")
	b.WriteString("4. Monitor fragment usage for optimization\n")
	return b.String()
}

func formatTypeCounts(counts map[domain.FragmentType]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for t := range counts {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[domain.FragmentType(k)]))
	}
	return strings.Join(parts, ", ")
}
