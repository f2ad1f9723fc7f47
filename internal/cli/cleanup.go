package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remedy-project/remedy/pkg/remedy"
)

var (
	cleanupRetentionDays int
	cleanupDryRun        bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove snapshots past the retention window",
	Long: `Remove snapshots older than the retention window (default from config,
normally 30 days). Tagged snapshots are pinned and never removed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := requireClient()
		defer client.Close()

		result, err := client.Cleanup(context.Background(), remedy.CleanupOptions{
			RetentionDays: cleanupRetentionDays,
			DryRun:        cleanupDryRun,
		})
		if err != nil {
			fmtErr("cleanup: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}

		if cleanupDryRun {
			fmt.Printf("Would delete %d snapshots (%d pinned by tags)\n", len(result.Candidate), result.Pinned)
			for _, id := range result.Candidate {
				fmt.Printf("  %s\n", id)
			}
			return
		}
		fmt.Printf("Deleted %d snapshots (%d pinned by tags)\n", result.Deleted, result.Pinned)
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupRetentionDays, "retention-days", 0, "override the configured retention window")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "list what would be deleted without deleting")
	rootCmd.AddCommand(cleanupCmd)
}
