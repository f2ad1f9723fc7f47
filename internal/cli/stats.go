package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show snapshot store statistics",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := requireClient()
		defer client.Close()

		stats, err := client.Stats(context.Background())
		if err != nil {
			fmtErr("stats: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(stats)
			return
		}

		fmt.Printf("Snapshots:         %d\n", stats.TotalSnapshots)
		fmt.Printf("Files captured:    %d\n", stats.TotalFiles)
		fmt.Printf("Content size:      %d bytes\n", stats.TotalSize)
		fmt.Printf("On-disk size:      %d bytes\n", stats.CompressedSize)
		if stats.CompressionRatio > 0 {
			fmt.Printf("Compression ratio: %.2f\n", stats.CompressionRatio)
		}
		if stats.OldestSnapshot != nil {
			fmt.Printf("Oldest:            %s\n", stats.OldestSnapshot.Local().Format(time.RFC3339))
		}
		if stats.NewestSnapshot != nil {
			fmt.Printf("Newest:            %s\n", stats.NewestSnapshot.Local().Format(time.RFC3339))
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
