package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/specfrag-cli/internal/adapters/driving/mcp"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so agents can research APIs
through cached fragments.

Tools:
  fragment_based_api_research  resolve an intent into an API call
  list_api_fragments           most used fragments of an API
  cleanup_fragments            delete never-used fragments
  get_api_stats                fragment counts and usage
  import_spec                  cache the fragments of a specification

By default the server communicates over stdio using JSON-RPC. Use --port
to serve streamable HTTP instead.

Examples:
  # Stdio mode (default)
  specfrag mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  specfrag mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "specfrag": {
        "command": "/path/to/specfrag",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func newMCPServer() (*mcp.Server, error) {
	if researchService == nil {
		return nil, errors.New("research service not configured")
	}

	ports := &mcp.Ports{
		Research:  researchService,
		Fragments: fragmentService,
		Specs:     specService,
	}
	return mcp.NewServer(ports, logger.Named("mcp"))
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if mcpPort < 0 || mcpPort > 65535 {
		return fmt.Errorf("invalid port: %d", mcpPort)
	}

	server, err := newMCPServer()
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		cmd.PrintErrf("MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
