package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

var (
	fragmentsLimit int
	fragmentsJSON  bool
)

var fragmentsCmd = &cobra.Command{
	Use:   "fragments",
	Short: "Inspect cached fragments",
	Long:  `Commands for listing, showing and searching cached specification fragments.`,
}

var fragmentsListCmd = &cobra.Command{
	Use:   "list [api-id]",
	Short: "List the most used fragments of an API",
	Args:  cobra.ExactArgs(1),
	RunE:  runFragmentsList,
}

var fragmentsShowCmd = &cobra.Command{
	Use:   "show [fragment-id]",
	Short: "Show one fragment and its relationships",
	Args:  cobra.ExactArgs(1),
	RunE:  runFragmentsShow,
}

var fragmentsSearchCmd = &cobra.Command{
	Use:   "search [api-id] [text]",
	Short: "Find fragments matching free text",
	Long: `Finds up to ten fragments of one API whose summary, description, tags or
keywords contain any word of the text.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFragmentsSearch,
}

func init() {
	fragmentsListCmd.Flags().IntVarP(&fragmentsLimit, "limit", "n", 10, "maximum number of fragments")
	fragmentsShowCmd.Flags().BoolVar(&fragmentsJSON, "json", false, "output as JSON")
	fragmentsSearchCmd.Flags().BoolVar(&fragmentsJSON, "json", false, "output as JSON")

	fragmentsCmd.AddCommand(fragmentsListCmd)
	fragmentsCmd.AddCommand(fragmentsShowCmd)
	fragmentsCmd.AddCommand(fragmentsSearchCmd)
	rootCmd.AddCommand(fragmentsCmd)
}

func runFragmentsList(cmd *cobra.Command, args []string) error {
	if researchService == nil {
		return errors.New("research service not configured")
	}
	if fragmentsLimit <= 0 {
		return errors.New("--limit must be positive")
	}

	cmd.Println(researchService.ListFragments(cmd.Context(), args[0], fragmentsLimit))
	return nil
}

func runFragmentsShow(cmd *cobra.Command, args []string) error {
	if fragmentService == nil {
		return errors.New("fragment service not configured")
	}

	id := args[0]
	f := fragmentService.Get(cmd.Context(), id)
	if f == nil {
		return fmt.Errorf("fragment not found: %s", id)
	}
	rels := fragmentService.Relationships(cmd.Context(), id)

	if fragmentsJSON {
		return printJSON(cmd, struct {
			Fragment      fragmentView   `json:"fragment"`
			Relationships []relationView `json:"relationships"`
		}{toFragmentView(f), toRelationViews(rels)})
	}

	cmd.Printf("ID:       %s\n", f.ID)
	cmd.Printf("API:      %s\n", f.APIID)
	cmd.Printf("Type:     %s\n", f.Type)
	if f.IsEndpoint() {
		cmd.Printf("Endpoint: %s %s\n", f.Method(), f.Path())
	} else if name := f.Name(); name != "" {
		cmd.Printf("Name:     %s\n", name)
	}
	if f.Metadata.Summary != "" {
		cmd.Printf("Summary:  %s\n", f.Metadata.Summary)
	}
	if len(f.Metadata.Tags) > 0 {
		cmd.Printf("Tags:     %s\n", strings.Join(f.Metadata.Tags, ", "))
	}
	cmd.Printf("Usage:    %d\n", f.UsageCount)

	if len(rels) > 0 {
		cmd.Println()
		cmd.Println("Relationships:")
		for _, r := range rels {
			cmd.Printf("  %s -[%s]-> %s\n", r.ParentID, r.Type, r.ChildID)
		}
	}

	content, err := json.MarshalIndent(f.Content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}
	cmd.Println()
	cmd.Println("Content:")
	cmd.Println(string(content))
	return nil
}

func runFragmentsSearch(cmd *cobra.Command, args []string) error {
	if fragmentService == nil {
		return errors.New("fragment service not configured")
	}

	apiID := args[0]
	fragments := fragmentService.FindByIntent(cmd.Context(), apiID, strings.Join(args[1:], " "))

	if fragmentsJSON {
		views := make([]fragmentView, len(fragments))
		for i := range fragments {
			views[i] = toFragmentView(&fragments[i])
		}
		return printJSON(cmd, views)
	}

	if len(fragments) == 0 {
		cmd.Println("No matching fragments.")
		return nil
	}
	cmd.Printf("Found %d fragments for %s:\n\n", len(fragments), apiID)
	for i := range fragments {
		cmd.Printf("  [%d] %s\n", i+1, describeFragment(&fragments[i]))
		cmd.Printf("      %s\n", fragments[i].ID)
	}
	return nil
}

// describeFragment returns a one-line label for a fragment.
func describeFragment(f *domain.Fragment) string {
	if f.IsEndpoint() {
		if f.Metadata.Summary != "" {
			return fmt.Sprintf("%s %s - %s", f.Method(), f.Path(), f.Metadata.Summary)
		}
		return fmt.Sprintf("%s %s", f.Method(), f.Path())
	}
	return fmt.Sprintf("%s %s", f.Type, f.Name())
}

type fragmentView struct {
	ID         string                  `json:"id"`
	APIID      string                  `json:"api_id"`
	Type       string                  `json:"type"`
	Content    map[string]any          `json:"content"`
	Metadata   domain.FragmentMetadata `json:"metadata"`
	UsageCount int                     `json:"usage_count"`
}

type relationView struct {
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
	Type     string `json:"type"`
}

func toFragmentView(f *domain.Fragment) fragmentView {
	return fragmentView{
		ID:         f.ID,
		APIID:      f.APIID,
		Type:       string(f.Type),
		Content:    f.Content,
		Metadata:   f.Metadata,
		UsageCount: f.UsageCount,
	}
}

func toRelationViews(rels []domain.Relationship) []relationView {
	out := make([]relationView, len(rels))
	for i, r := range rels {
		out[i] = relationView{ParentID: r.ParentID, ChildID: r.ChildID, Type: r.Type}
	}
	return out
}
