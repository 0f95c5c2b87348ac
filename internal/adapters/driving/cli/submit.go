package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	submitID       string
	submitPriority int
	submitMeta     []string
)

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Submit a document for embedding",
	Long: `Reads extracted document text from a file (or stdin when the
argument is "-") and admits it to the asynchronous embedding pipeline.
Metadata pairs are attached as exact-match searchable attributes;
keys prefixed tax_ are normalised to the canonical cst/value shape.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitID, "id", "", "document id (default: derived from file name)")
	submitCmd.Flags().IntVarP(&submitPriority, "priority", "p", 0, "job priority (higher is claimed first)")
	submitCmd.Flags().StringArrayVarP(&submitMeta, "meta", "m", nil, "metadata pair key=value (repeatable)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}

	var text []byte
	var err error
	if args[0] == "-" {
		text, err = os.ReadFile("/dev/stdin")
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	documentID := submitID
	if documentID == "" {
		if args[0] == "-" {
			documentID = uuid.NewString()
		} else {
			base := filepath.Base(args[0])
			documentID = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}

	metadata, err := parseMetaPairs(submitMeta)
	if err != nil {
		return err
	}

	if err := ingestService.SubmitDocument(cmd.Context(), documentID, string(text), metadata, submitPriority); err != nil {
		return fmt.Errorf("submitting document: %w", err)
	}

	cmd.Println(successStyle.Render("submitted") + " " + documentID)
	cmd.Println(mutedStyle.Render("embedding runs asynchronously; check progress with: fiscalia status " + documentID))
	return nil
}

// parseMetaPairs converts repeated key=value flags to a metadata map.
func parseMetaPairs(pairs []string) (map[string]string, error) {
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata pair %q, expected key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}
