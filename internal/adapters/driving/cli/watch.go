package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/specfrag-cli/internal/adapters/driving/watcher"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Import specifications from a directory as they change",
	Long: `Watches a directory for *.json, *.yaml and *.yml files. Every file that
is created or written is imported with the API ID set to its base name,
so ./specs/github.yaml becomes the API "github".

Files already present are imported when the watch starts. Press Ctrl+C
to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if specService == nil {
		return errors.New("spec service not configured")
	}

	w := watcher.New(specService, logger.Named("watcher"),
		watcher.WithImportHook(func(apiID string, n int, err error) {
			if err != nil {
				cmd.PrintErrf("%s: %v\n", apiID, err)
				return
			}
			cmd.Printf("%s: %d fragments\n", apiID, n)
		}),
	)

	cmd.Printf("Watching %s\n", args[0])
	return w.Run(cmd.Context(), args[0])
}
