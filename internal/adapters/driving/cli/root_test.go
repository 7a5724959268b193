package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "specfrag", rootCmd.Use)
	assert.Contains(t, rootCmd.Long, "fragments")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	expected := []string{
		"research", "fragments", "extract", "import", "apis", "stats",
		"cleanup", "watch", "serve", "mcp", "settings", "version",
	}
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)

	defer func() {
		verbose = false
		logger.SetVerbose(false)
	}()

	_, err := execute(t, "--verbose", "version")
	require.NoError(t, err)
	assert.True(t, logger.IsVerbose())
}

func TestSetServices(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	SetServices(Services{})

	assert.Nil(t, fragmentService)
	assert.Nil(t, researchService)
	assert.Nil(t, specService)
	assert.Nil(t, settingsService)
	assert.Nil(t, scheduler)
	assert.Nil(t, metricsServer)
}
