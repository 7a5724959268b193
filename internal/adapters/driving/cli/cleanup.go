package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete never-used fragments",
	Long: `Deletes fragments that have never been used and were created more than
--days days ago. Fragments that were used at least once are kept.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "age threshold in days")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if researchService == nil {
		return errors.New("research service not configured")
	}
	if cleanupDays < 0 {
		return errors.New("--days must not be negative")
	}

	cmd.Println(researchService.Cleanup(cmd.Context(), cleanupDays))
	return nil
}
