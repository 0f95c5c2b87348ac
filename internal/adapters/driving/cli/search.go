package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

var (
	searchLimit   int
	searchMinSim  float64
	searchFilters []string
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored documents by semantic similarity",
	Long: `Embeds the query and returns the most similar document passages.
Filters are exact-match AND-combined over chunk metadata, e.g.
--filter document_type=invoice --filter tax_icms=10/18.50.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinSim, "min-similarity", 0, "minimum cosine similarity (0-1)")
	searchCmd.Flags().StringArrayVarP(&searchFilters, "filter", "f", nil, "metadata filter key=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}

	filters, err := parseMetaPairs(searchFilters)
	if err != nil {
		return err
	}

	opts := domain.SearchOptions{
		TopK:          searchLimit,
		MinSimilarity: searchMinSim,
		Filters:       filters,
	}

	results, err := searchService.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchText(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SimilarityResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchText(cmd *cobra.Command, results []domain.SimilarityResult) error {
	if len(results) == 0 {
		cmd.Println(mutedStyle.Render("No results found."))
		return nil
	}

	cmd.Println(titleStyle.Render("Results:"))
	cmd.Println()
	for i := range results {
		score := scoreStyle.Render(fmt.Sprintf("%.3f", results[i].Similarity))
		cmd.Printf("  [%d] %s chunk %d (%s)\n", i+1,
			results[i].Chunk.DocumentID, results[i].Chunk.Index, score)

		snippet := results[i].Chunk.Text
		if runes := []rune(snippet); len(runes) > 160 {
			snippet = string(runes[:160]) + "…"
		}
		cmd.Printf("      %s\n", snippet)
		cmd.Println()
	}

	return nil
}
