package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for specfrag resources.
	uriScheme = "specfrag://"

	// resourceFragmentLimit caps the fragments listed per API resource.
	resourceFragmentLimit = 100
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "apis",
		Name:        "apis",
		Description: "APIs with cached fragments and their bookkeeping",
		MIMEType:    "application/json",
	}, s.handleAPIsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "apis/{apiId}/fragments",
		Name:        "api-fragments",
		Description: "Cached fragments of one API, most used first",
		MIMEType:    "application/json",
	}, s.handleAPIFragmentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "fragments/{fragmentId}",
		Name:        "fragment",
		Description: "A single fragment with its relationships",
		MIMEType:    "application/json",
	}, s.handleFragmentResource)
}

type apiInfo struct {
	APIID         string `json:"api_id"`
	SpecLocation  string `json:"spec_location,omitempty"`
	LastFetched   string `json:"last_fetched,omitempty"`
	Version       string `json:"version,omitempty"`
	FragmentCount int    `json:"fragment_count"`
	TotalUsage    int    `json:"total_usage"`
}

type fragmentInfo struct {
	ID            string                  `json:"id"`
	APIID         string                  `json:"api_id"`
	Type          string                  `json:"type"`
	Content       map[string]any          `json:"content"`
	Metadata      domain.FragmentMetadata `json:"metadata"`
	UsageCount    int                     `json:"usage_count"`
	LastUsed      string                  `json:"last_used,omitempty"`
	CreatedAt     string                  `json:"created_at,omitempty"`
	UpdatedAt     string                  `json:"updated_at,omitempty"`
	Relationships []relationshipInfo      `json:"relationships,omitempty"`
}

type relationshipInfo struct {
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
	Type     string `json:"type"`
}

// handleAPIsResource lists known APIs.
func (s *Server) handleAPIsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	infos := []apiInfo{}
	if s.ports.Specs != nil {
		metas, err := s.ports.Specs.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing apis: %w", err)
		}
		for _, m := range metas {
			infos = append(infos, apiInfo{
				APIID:         m.APIID,
				SpecLocation:  m.SpecLocation,
				LastFetched:   formatTime(m.LastFetched),
				Version:       m.Version,
				FragmentCount: m.FragmentCount,
				TotalUsage:    m.TotalUsage,
			})
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleAPIFragmentsResource lists fragments of one API.
func (s *Server) handleAPIFragmentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	apiID := extractAPIID(req.Params.URI)
	if apiID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	fragments := s.ports.Fragments.Find(ctx, domain.FragmentQuery{APIID: apiID, Limit: resourceFragmentLimit})
	infos := make([]fragmentInfo, len(fragments))
	for i := range fragments {
		infos[i] = toFragmentInfo(&fragments[i], nil)
	}
	return jsonResult(req.Params.URI, infos)
}

// handleFragmentResource returns one fragment and its links.
func (s *Server) handleFragmentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractFragmentID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	fragment := s.ports.Fragments.Get(ctx, id)
	if fragment == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResult(req.Params.URI, toFragmentInfo(fragment, s.ports.Fragments.Relationships(ctx, id)))
}

func toFragmentInfo(f *domain.Fragment, rels []domain.Relationship) fragmentInfo {
	info := fragmentInfo{
		ID:         f.ID,
		APIID:      f.APIID,
		Type:       string(f.Type),
		Content:    f.Content,
		Metadata:   f.Metadata,
		UsageCount: f.UsageCount,
		LastUsed:   formatTime(f.LastUsed),
		CreatedAt:  formatTime(f.CreatedAt),
		UpdatedAt:  formatTime(f.UpdatedAt),
	}
	for _, r := range rels {
		info.Relationships = append(info.Relationships, relationshipInfo{
			ParentID: r.ParentID,
			ChildID:  r.ChildID,
			Type:     r.Type,
		})
	}
	return info
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// extractAPIID extracts the API ID from specfrag://apis/{apiId}/fragments.
func extractAPIID(uri string) string {
	const prefix = uriScheme + "apis/"
	const suffix = "/fragments"

	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, suffix)
	if !ok {
		return ""
	}
	return id
}

// extractFragmentID extracts the fragment ID from specfrag://fragments/{fragmentId}.
func extractFragmentID(uri string) string {
	id, ok := strings.CutPrefix(uri, uriScheme+"fragments/")
	if !ok {
		return ""
	}
	return id
}
