package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the embedding worker pool",
	Long: `Starts the worker pool that drains the embedding job queue:
claims pending jobs in priority order, embeds their chunks through the
configured provider chain, and persists the vectors. Runs until
interrupted.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if err := setup(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Println(titleStyle.Render("fiscalia worker") + mutedStyle.Render(" (ctrl-c to stop)"))
	return workerPool.Run(ctx)
}
