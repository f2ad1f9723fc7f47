package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remedy-project/remedy/internal/admission"
	"github.com/remedy-project/remedy/pkg/color"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <path>...",
	Short: "Show risk classification and fix strategy for paths",
	Long: `Classify paths the way the admission controller would: category, risk
tier and fix strategy. Useful for checking what a recipe would be allowed
to touch before running a session.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		decisions := make(map[string]admission.Decision, len(args))
		for _, path := range args {
			decisions[path] = admission.ShouldAllowModification(path)
		}

		if jsonOutput {
			outputJSON(decisions)
			return
		}

		for _, path := range args {
			d := decisions[path]
			verdict := color.Success("allowed")
			if !d.Allowed {
				verdict = color.Error("blocked")
			}
			fmt.Printf("%-40s %-16s %-8s %-22s %s\n",
				path, d.Category, d.RiskTier, d.FixStrategy, verdict)
			if d.BlockReason != "" {
				fmt.Printf("  %s\n", color.Dim(d.BlockReason))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
