package mcp

import (
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Research resolves intents and renders reports.
	Research driving.ResearchService

	// Fragments serves statistics and the fragment resources.
	Fragments driving.FragmentService

	// Specs imports specifications and lists known APIs. Optional: without
	// it the import_spec tool is not offered and the API list is empty.
	Specs driving.SpecService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Research == nil {
		return ErrMissingResearchService
	}
	if p.Fragments == nil {
		return ErrMissingFragmentService
	}
	return nil
}
