package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract [api-id] [location]",
	Short: "Preview the fragments of a specification",
	Long: `Fetches a specification and prints the fragments it decomposes into,
without storing anything.`,
	Args: cobra.ExactArgs(2),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "output fragments as JSON")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if specService == nil {
		return errors.New("spec service not configured")
	}
	if fragmentService == nil {
		return errors.New("fragment service not configured")
	}

	apiID, location := args[0], args[1]
	spec, err := specService.Fetch(cmd.Context(), location)
	if err != nil {
		return fmt.Errorf("failed to fetch spec: %w", err)
	}

	fragments := fragmentService.Extract(apiID, spec)
	if extractJSON {
		views := make([]fragmentView, len(fragments))
		for i := range fragments {
			views[i] = toFragmentView(&fragments[i])
		}
		return printJSON(cmd, views)
	}

	cmd.Printf("%d fragments:\n", len(fragments))
	for i := range fragments {
		cmd.Printf("  %s\n", describeFragment(&fragments[i]))
	}
	return nil
}
