package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/remedy-project/remedy/pkg/color"
	"github.com/remedy-project/remedy/pkg/model"
)

var (
	rollbackSnapshot  string
	rollbackRecipe    string
	rollbackTimestamp string
	rollbackFiles     []string
	rollbackDryRun    bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore files from a snapshot",
	Long: `Restore files to their pre-mutation state.

The snapshot is selected by, in order of precedence: --snapshot, the most
recent snapshot for --recipe, the snapshot nearest --at, or the most recent
snapshot overall. Use --file to restore a subset of the snapshot's paths
and --dry-run to preview the changes without writing.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := requireClient()
		defer client.Close()

		opts := model.RollbackOptions{
			SnapshotID: model.SnapshotID(rollbackSnapshot),
			RecipeID:   rollbackRecipe,
			Files:      rollbackFiles,
			DryRun:     rollbackDryRun,
		}
		if rollbackTimestamp != "" {
			ts, err := time.Parse(time.RFC3339, rollbackTimestamp)
			if err != nil {
				fmtErr("parse --at: %v (want RFC3339, e.g. 2026-08-29T12:00:00Z)", err)
				os.Exit(1)
			}
			opts.Timestamp = &ts
		}

		result, err := client.Rollback(context.Background(), opts)
		if err != nil {
			fmtErr("rollback: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(result)
			if !result.Success {
				os.Exit(1)
			}
			return
		}

		if rollbackDryRun {
			fmt.Printf("Would restore %d files from %s (%d unchanged)\n",
				result.FilesRestored, color.SnapshotID(string(result.SnapshotID)), result.FilesSkipped)
			if result.PreviewDiff != "" {
				fmt.Print(result.PreviewDiff)
			}
			return
		}

		fmt.Printf("Restored %d files from %s (%d unchanged)\n",
			result.FilesRestored, color.SnapshotID(string(result.SnapshotID)), result.FilesSkipped)
		for _, re := range result.Errors {
			fmt.Printf("  %s %s: %s\n", color.Error("failed"), re.Path, re.Error)
		}
		if !result.Success {
			os.Exit(1)
		}
	},
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackSnapshot, "snapshot", "", "snapshot ID to restore")
	rollbackCmd.Flags().StringVar(&rollbackRecipe, "recipe", "", "restore the most recent snapshot of this recipe")
	rollbackCmd.Flags().StringVar(&rollbackTimestamp, "at", "", "restore the snapshot nearest this RFC3339 timestamp")
	rollbackCmd.Flags().StringSliceVar(&rollbackFiles, "file", nil, "restrict restore to these paths (repeatable)")
	rollbackCmd.Flags().BoolVar(&rollbackDryRun, "dry-run", false, "preview without writing")
	rootCmd.AddCommand(rollbackCmd)
}
