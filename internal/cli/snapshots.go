package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/remedy-project/remedy/internal/snapshot"
	"github.com/remedy-project/remedy/pkg/color"
	"github.com/remedy-project/remedy/pkg/model"
)

var (
	snapshotsRecipe string
	snapshotsTag    string
	snapshotsLimit  int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := requireClient()
		defer client.Close()

		entries, err := client.Snapshots(context.Background(), snapshot.FilterOptions{
			RecipeID: snapshotsRecipe,
			HasTag:   snapshotsTag,
		})
		if err != nil {
			fmtErr("list snapshots: %v", err)
			os.Exit(1)
		}
		if snapshotsLimit > 0 && len(entries) > snapshotsLimit {
			entries = entries[:snapshotsLimit]
		}

		if jsonOutput {
			outputJSON(entries)
			return
		}

		if len(entries) == 0 {
			fmt.Println("No snapshots.")
			return
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %s  %-20s  %d files",
				color.SnapshotID(string(e.SnapshotID)),
				e.CreatedAt.Local().Format(time.RFC3339),
				e.RecipeID,
				e.FileCount)
			if len(e.Tags) > 0 {
				line += "  " + color.Dim(fmt.Sprintf("%v", e.Tags))
			}
			fmt.Println(line)
		}
	},
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <snapshot-id>",
	Short: "Show one snapshot's descriptor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := requireClient()
		defer client.Close()

		desc, err := client.Snapshot(context.Background(), model.SnapshotID(args[0]))
		if err != nil {
			fmtErr("load snapshot: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(desc)
			return
		}

		fmt.Printf("Snapshot %s\n", color.SnapshotID(string(desc.SnapshotID)))
		fmt.Printf("  Recipe:  %s\n", desc.RecipeID)
		fmt.Printf("  Created: %s\n", desc.CreatedAt.Local().Format(time.RFC3339))
		if desc.Parent != nil {
			fmt.Printf("  Parent:  %s\n", *desc.Parent)
		}
		if len(desc.Tags) > 0 {
			fmt.Printf("  Tags:    %v\n", desc.Tags)
		}
		fmt.Printf("  Files:   %d (%d bytes)\n", len(desc.Files), desc.TotalSizeBytes)
		for _, f := range desc.Files {
			fmt.Printf("    %-8s %s\n", f.Operation, f.Path)
		}
	},
}

func init() {
	snapshotsCmd.Flags().StringVar(&snapshotsRecipe, "recipe", "", "filter by recipe ID")
	snapshotsCmd.Flags().StringVar(&snapshotsTag, "tag", "", "filter by tag")
	snapshotsCmd.Flags().IntVar(&snapshotsLimit, "limit", 0, "show at most N snapshots")
	snapshotsCmd.AddCommand(snapshotsShowCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
