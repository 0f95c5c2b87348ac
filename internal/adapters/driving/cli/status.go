package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Report embedding progress for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}

	status, lastError, err := ingestService.EmbeddingStatus(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	cmd.Printf("%s %s\n", args[0], statusStyle(string(status)).Render(string(status)))
	if lastError != "" {
		cmd.Println(errorStyle.Render("last error: " + lastError))
	}
	return nil
}
