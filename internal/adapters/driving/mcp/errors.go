// Package mcp exposes the specfrag research facade as a Model Context
// Protocol server, so agents can resolve intents against cached API
// fragments over stdio or HTTP.
package mcp

import "errors"

var (
	// ErrMissingResearchService is returned when the research service is not provided.
	ErrMissingResearchService = errors.New("mcp: research service is required")

	// ErrMissingFragmentService is returned when the fragment service is not provided.
	ErrMissingFragmentService = errors.New("mcp: fragment service is required")
)
