package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// Tool defaults.
const (
	defaultListLimit = 10
	defaultDaysOld   = 30
)

// ResearchInput is the input schema for fragment_based_api_research.
type ResearchInput struct {
	Intent string         `json:"intent" jsonschema:"what you want to do with the API, in plain language"`
	APIID  string         `json:"api_id" jsonschema:"identifier of the target API"`
	Spec   map[string]any `json:"spec,omitempty" jsonschema:"optional full OpenAPI document used to populate the cache on first contact"`
	Params map[string]any `json:"params,omitempty" jsonschema:"optional extra parameters for the call"`
}

// ResearchOutput is the output schema for fragment_based_api_research.
type ResearchOutput struct {
	RequestID string `json:"request_id"`
	Report    string `json:"report"`
}

// ListFragmentsInput is the input schema for list_api_fragments.
type ListFragmentsInput struct {
	APIID string `json:"api_id" jsonschema:"identifier of the API"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of fragments (default 10)"`
}

// CleanupInput is the input schema for cleanup_fragments.
type CleanupInput struct {
	DaysOld *int `json:"days_old,omitempty" jsonschema:"delete never-used fragments older than this many days (default 30; 0 sweeps every never-used fragment)"`
}

// StatsInput is the input schema for get_api_stats.
type StatsInput struct {
	APIID string `json:"api_id" jsonschema:"identifier of the API"`
}

// StatsOutput is the output schema for get_api_stats.
type StatsOutput struct {
	APIID          string         `json:"api_id"`
	TotalFragments int            `json:"total_fragments"`
	FragmentTypes  map[string]int `json:"fragment_types"`
	TotalUsage     int            `json:"total_usage"`
	AverageUsage   float64        `json:"average_usage"`
	LastUsed       string         `json:"last_used,omitempty"`
}

// ImportInput is the input schema for import_spec.
type ImportInput struct {
	APIID    string `json:"api_id" jsonschema:"identifier to store the fragments under"`
	Location string `json:"location" jsonschema:"file path, http(s) URL or github://owner/repo/path@ref"`
}

// ImportOutput is the output schema for import_spec.
type ImportOutput struct {
	APIID     string `json:"api_id"`
	Fragments int    `json:"fragments"`
	Message   string `json:"message"`
}

// TextOutput carries a rendered text report.
type TextOutput struct {
	Text string `json:"text"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "fragment_based_api_research",
		Description: "Resolve a natural-language intent into a concrete API call " +
			"using cached specification fragments instead of the full document.",
	}, s.handleResearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_api_fragments",
		Description: "List the most used cached fragments of an API",
	}, s.handleListFragments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cleanup_fragments",
		Description: "Delete cached fragments that were never used and are older than a threshold",
	}, s.handleCleanup)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_api_stats",
		Description: "Fragment counts and usage statistics for an API",
	}, s.handleStats)

	if s.ports.Specs != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "import_spec",
			Description: "Fetch an OpenAPI document and cache its fragments",
		}, s.handleImport)
	}
}

// handleResearch never fails: problems are described in the report.
func (s *Server) handleResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResearchInput,
) (*mcp.CallToolResult, ResearchOutput, error) {
	requestID := uuid.NewString()
	start := time.Now()

	report := s.ports.Research.Research(ctx, domain.ResearchRequest{
		Intent: input.Intent,
		APIID:  input.APIID,
		Spec:   domain.SpecDocument(input.Spec),
		Params: input.Params,
	})

	s.logger.Info("research",
		zap.String("request_id", requestID),
		zap.String("api_id", input.APIID),
		zap.Bool("with_spec", input.Spec != nil),
		zap.Duration("elapsed", time.Since(start)),
	)

	return textResult(report), ResearchOutput{RequestID: requestID, Report: report}, nil
}

func (s *Server) handleListFragments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListFragmentsInput,
) (*mcp.CallToolResult, TextOutput, error) {
	if strings.TrimSpace(input.APIID) == "" {
		return nil, TextOutput{}, errors.New("api_id is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	text := s.ports.Research.ListFragments(ctx, input.APIID, limit)
	return textResult(text), TextOutput{Text: text}, nil
}

func (s *Server) handleCleanup(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CleanupInput,
) (*mcp.CallToolResult, TextOutput, error) {
	days := defaultDaysOld
	if input.DaysOld != nil {
		days = *input.DaysOld
	}
	if days < 0 {
		return nil, TextOutput{}, errors.New("days_old must not be negative")
	}

	text := s.ports.Research.Cleanup(ctx, days)
	s.logger.Info("cleanup", zap.Int("days_old", days), zap.String("result", text))
	return textResult(text), TextOutput{Text: text}, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	if strings.TrimSpace(input.APIID) == "" {
		return nil, StatsOutput{}, errors.New("api_id is required")
	}

	stats := s.ports.Fragments.Stats(ctx, input.APIID)
	out := StatsOutput{
		APIID:          stats.APIID,
		TotalFragments: stats.TotalFragments,
		FragmentTypes:  make(map[string]int, len(stats.FragmentStats)),
		TotalUsage:     stats.TotalUsage,
		AverageUsage:   stats.AverageUsage,
	}
	for t, n := range stats.FragmentStats {
		out.FragmentTypes[string(t)] = n
	}
	if !stats.LastUsed.IsZero() {
		out.LastUsed = stats.LastUsed.UTC().Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleImport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ImportInput,
) (*mcp.CallToolResult, ImportOutput, error) {
	n, err := s.ports.Specs.Import(ctx, input.APIID, input.Location)
	if err != nil {
		s.logger.Warn("import failed",
			zap.String("api_id", input.APIID),
			zap.String("location", input.Location),
			zap.Error(err),
		)
		return nil, ImportOutput{}, fmt.Errorf("importing %s: %w", input.Location, err)
	}

	msg := fmt.Sprintf("Imported %d fragments for %s", n, input.APIID)
	return textResult(msg), ImportOutput{APIID: input.APIID, Fragments: n, Message: msg}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
