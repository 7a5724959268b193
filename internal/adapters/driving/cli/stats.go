package cli

import (
	"errors"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats [api-id]",
	Short: "Show fragment statistics for an API",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

type statsView struct {
	APIID          string         `json:"api_id"`
	TotalFragments int            `json:"total_fragments"`
	FragmentTypes  map[string]int `json:"fragment_types"`
	TotalUsage     int            `json:"total_usage"`
	AverageUsage   float64        `json:"average_usage"`
	LastUsed       string         `json:"last_used,omitempty"`
}

func toStatsView(s domain.APIStats) statsView {
	v := statsView{
		APIID:          s.APIID,
		TotalFragments: s.TotalFragments,
		FragmentTypes:  make(map[string]int, len(s.FragmentStats)),
		TotalUsage:     s.TotalUsage,
		AverageUsage:   s.AverageUsage,
	}
	for t, n := range s.FragmentStats {
		v.FragmentTypes[string(t)] = n
	}
	if !s.LastUsed.IsZero() {
		v.LastUsed = s.LastUsed.UTC().Format(time.RFC3339)
	}
	return v
}

func runStats(cmd *cobra.Command, args []string) error {
	if fragmentService == nil {
		return errors.New("fragment service not configured")
	}

	v := toStatsView(fragmentService.Stats(cmd.Context(), args[0]))
	if statsJSON {
		return printJSON(cmd, v)
	}

	cmd.Printf("API: %s\n", v.APIID)
	cmd.Printf("  Fragments:     %d\n", v.TotalFragments)
	types := make([]string, 0, len(v.FragmentTypes))
	for t := range v.FragmentTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		cmd.Printf("    %-11s  %d\n", t, v.FragmentTypes[t])
	}
	cmd.Printf("  Total usage:   %d\n", v.TotalUsage)
	cmd.Printf("  Average usage: %.2f\n", v.AverageUsage)
	if v.LastUsed != "" {
		cmd.Printf("  Last used:     %s\n", v.LastUsed)
	} else {
		cmd.Println("  Last used:     never")
	}
	return nil
}
