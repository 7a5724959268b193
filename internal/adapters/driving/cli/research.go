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
	researchSpec   string
	researchParams string
	researchJSON   bool
)

var researchCmd = &cobra.Command{
	Use:   "research [api-id] [intent]",
	Short: "Resolve an intent into an API call",
	Long: `Resolves a natural-language intent into a concrete API call using the
cached fragments of one API.

When --spec is given, the specification is fetched and its fragments are
cached before interpretation, and the recommended endpoint is checked
against it.

Examples:
  specfrag research github "create a new issue"
  specfrag research petstore "add a pet" --spec ./petstore.yaml
  specfrag research github "list issues" --params '{"state":"open"}' --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVar(&researchSpec, "spec", "", "spec location to populate from (file, URL or github://)")
	researchCmd.Flags().StringVar(&researchParams, "params", "", "extra call parameters as a JSON object")
	researchCmd.Flags().BoolVar(&researchJSON, "json", false, "output the structured result as JSON")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	if researchService == nil {
		return errors.New("research service not configured")
	}

	req := domain.ResearchRequest{
		APIID:  args[0],
		Intent: strings.Join(args[1:], " "),
	}

	if researchParams != "" {
		if err := json.Unmarshal([]byte(researchParams), &req.Params); err != nil {
			return fmt.Errorf("invalid --params: %w", err)
		}
	}

	if researchSpec != "" {
		if specService == nil {
			return errors.New("spec service not configured")
		}
		spec, err := specService.Fetch(cmd.Context(), researchSpec)
		if err != nil {
			return fmt.Errorf("failed to fetch spec: %w", err)
		}
		req.Spec = spec
	}

	if researchJSON {
		result, err := researchService.Plan(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("research failed: %w", err)
		}
		return printJSON(cmd, researchView(result))
	}

	cmd.Println(researchService.Research(cmd.Context(), req))
	return nil
}

type planView struct {
	APIID       string         `json:"api_id"`
	Endpoint    string         `json:"endpoint"`
	Method      string         `json:"method"`
	Parameters  map[string]any `json:"parameters"`
	Description string         `json:"description"`
	Reasoning   string         `json:"reasoning"`
	Confidence  float64        `json:"confidence"`
	FragmentIDs []string       `json:"fragment_ids"`
	Source      string         `json:"source"`
}

type researchResultView struct {
	Plan          planView `json:"plan"`
	LowConfidence bool     `json:"low_confidence"`
	Validation    struct {
		Passed   bool     `json:"passed"`
		Problems []string `json:"problems"`
	} `json:"validation"`
	Stats statsView `json:"stats"`
}

func researchView(r *domain.ResearchResult) researchResultView {
	var v researchResultView
	v.Plan = planView{
		APIID:       r.Plan.APIID,
		Endpoint:    r.Plan.Endpoint,
		Method:      r.Plan.Method,
		Parameters:  r.Plan.Parameters,
		Description: r.Plan.Description,
		Reasoning:   r.Plan.Reasoning,
		Confidence:  r.Plan.Confidence,
		FragmentIDs: r.Plan.FragmentIDs,
		Source:      string(r.Plan.Source),
	}
	v.LowConfidence = r.Plan.IsLowConfidence()
	v.Validation.Passed = r.Validation.Passed
	v.Validation.Problems = r.Validation.Problems
	v.Stats = toStatsView(r.Stats)
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
