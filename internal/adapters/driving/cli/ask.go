package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	askFilters      []string
	askContextItems int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question grounded on stored documents",
	Long: `Runs the retrieval-augmented pipeline: checks the analysis cache,
retrieves the most relevant passages, asks the configured generative
model, and caches the answer. Requires an LLM provider in config.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVarP(&askFilters, "filter", "f", nil, "metadata filter key=value (repeatable)")
	askCmd.Flags().IntVar(&askContextItems, "context-items", 0, "how many passages ground the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	if ragService == nil {
		return errors.New("no LLM provider configured; set llm.provider in config")
	}

	filters, err := parseMetaPairs(askFilters)
	if err != nil {
		return err
	}

	answer, err := ragService.Answer(cmd.Context(), args[0], filters, askContextItems)
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	cmd.Println(answer.Text)
	cmd.Println()
	if answer.CacheHit {
		cmd.Println(mutedStyle.Render("(cached answer)"))
	} else {
		cmd.Println(mutedStyle.Render(fmt.Sprintf("(grounded on %d passages)", len(answer.ContextItems))))
	}
	return nil
}
