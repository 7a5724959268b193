// Package cli provides the cobra command tree for the specfrag binary.
//
// Commands talk to the core through driving ports only. The composition
// root injects concrete services with SetServices before Execute runs.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

// version is set at build time via -ldflags "-X .../cli.version=...".
var version = "dev"

// MetricsServer serves the metrics endpoint until its context is cancelled.
type MetricsServer interface {
	Serve(ctx context.Context, addr string) error
}

// Services holds everything the commands need.
type Services struct {
	Fragments driving.FragmentService
	Research  driving.ResearchService
	Specs     driving.SpecService
	Settings  driving.SettingsService
	Scheduler driving.Scheduler
	Metrics   MetricsServer
}

var (
	fragmentService driving.FragmentService
	researchService driving.ResearchService
	specService     driving.SpecService
	settingsService driving.SettingsService
	scheduler       driving.Scheduler
	metricsServer   MetricsServer
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "specfrag",
	Short: "Fragment-based OpenAPI research",
	Long: `specfrag caches OpenAPI specifications as small, independently
retrievable fragments and resolves natural-language intents into concrete
API calls using only the fragments that matter.

Import a specification once, then ask for what you want to do:

  specfrag import github ./specs/github.yaml
  specfrag research github "create a new issue"`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	fragmentService = s.Fragments
	researchService = s.Research
	specService = s.Specs
	settingsService = s.Settings
	scheduler = s.Scheduler
	metricsServer = s.Metrics
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
