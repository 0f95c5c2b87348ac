package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeOlderThanDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show embedding queue depth",
	RunE:  runStats,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old completed jobs and expired cache entries",
	RunE:  runPurge,
}

func init() {
	purgeCmd.Flags().IntVar(&purgeOlderThanDays, "older-than", 7, "purge completed jobs older than this many days")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(purgeCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := setup(); err != nil {
		return err
	}

	stats, err := jobStore.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading queue stats: %w", err)
	}

	cmd.Println(titleStyle.Render("Embedding queue"))
	cmd.Printf("  pending     %d\n", stats.Pending)
	cmd.Printf("  processing  %d\n", stats.Processing)
	cmd.Printf("  %s  %d\n", successStyle.Render("completed "), stats.Completed)
	cmd.Printf("  %s      %d\n", errorStyle.Render("failed"), stats.Failed)
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	if err := setup(); err != nil {
		return err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -purgeOlderThanDays)

	jobs, err := jobStore.PurgeCompleted(cmd.Context(), cutoff)
	if err != nil {
		return fmt.Errorf("purging jobs: %w", err)
	}

	entries, err := store.CacheStore().DeleteExpired(cmd.Context(), now)
	if err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}

	cmd.Printf("purged %d completed jobs, %d expired cache entries\n", jobs, entries)
	return nil
}
