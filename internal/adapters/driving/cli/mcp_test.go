package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPCmd_HasServe(t *testing.T) {
	require.Len(t, mcpCmd.Commands(), 1)
	assert.Equal(t, "serve", mcpCmd.Commands()[0].Name())

	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestNewMCPServer(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	server, err := newMCPServer()
	require.NoError(t, err)
	assert.NotNil(t, server)
}

func TestNewMCPServer_MissingServices(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	researchService = nil
	_, err := newMCPServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research service not configured")

	researchService = &mockResearchService{}
	fragmentService = nil
	_, err = newMCPServer()
	require.Error(t, err)
}

func TestMCPServeCmd_InvalidPort(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "mcp", "serve", "--port", "70000")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}
