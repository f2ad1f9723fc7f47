package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/remedy-project/remedy/pkg/color"
)

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Attestation log operations",
}

var attestVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the attestation log's hash chain",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := requireClient()
		defer client.Close()

		n, err := client.VerifyAttestations(context.Background())
		if err != nil {
			if jsonOutput {
				outputJSON(map[string]any{"valid": false, "verified_entries": n, "error": err.Error()})
			} else {
				fmtErr("attestation chain broken: %v", err)
			}
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"valid": true, "verified_entries": n})
			return
		}
		fmt.Printf("%s attestation chain intact, %d entries verified\n", color.Success("OK"), n)
	},
}

var attestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attestation entries",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := requireClient()
		defer client.Close()

		entries, err := client.Attestations(context.Background())
		if err != nil {
			fmtErr("read attestation log: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(entries)
			return
		}

		if len(entries) == 0 {
			fmt.Println("No attestations.")
			return
		}
		for _, e := range entries {
			verdict := color.Warning("no improvement")
			if e.Improved {
				verdict = color.Success("improved")
			}
			fmt.Printf("%s  %-20s  %-20s  %d files  %s\n",
				e.Timestamp.Local().Format(time.RFC3339),
				e.SessionID,
				e.RecipeID,
				len(e.FilesModified),
				verdict)
		}
	},
}

func init() {
	attestCmd.AddCommand(attestVerifyCmd)
	attestCmd.AddCommand(attestListCmd)
	rootCmd.AddCommand(attestCmd)
}
