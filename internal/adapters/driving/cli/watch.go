package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ledgerline/fiscalia/internal/logger"
)

var watchPriority int

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and submit new documents",
	Long: `Watches an inbox directory and submits every new text file to the
embedding pipeline. The document id is the file name without its
extension. Pair with a running worker to get a drop-folder pipeline:

  fiscalia watch ./inbox & fiscalia worker`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVarP(&watchPriority, "priority", "p", 0, "job priority for submitted documents")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watching %s: not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Println(titleStyle.Render("watching") + " " + dir + mutedStyle.Render(" (ctrl-c to stop)"))

	// Files often arrive via CREATE followed by WRITE bursts; submit
	// once per path on the first qualifying event.
	submitted := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if submitted[event.Name] || !watchable(event.Name) {
				continue
			}
			submitted[event.Name] = true

			if err := submitWatchedFile(cmd, event.Name); err != nil {
				cmd.PrintErrln(errorStyle.Render(fmt.Sprintf("submit %s: %v", event.Name, err)))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Debug("watch error: %v", err)
		}
	}
}

// watchable reports whether a path looks like an extracted document.
func watchable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		return true
	default:
		return false
	}
}

func submitWatchedFile(cmd *cobra.Command, path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	base := filepath.Base(path)
	documentID := strings.TrimSuffix(base, filepath.Ext(base))

	if err := ingestService.SubmitDocument(cmd.Context(), documentID, string(text), nil, watchPriority); err != nil {
		return err
	}
	cmd.Println(successStyle.Render("submitted") + " " + documentID)
	return nil
}
