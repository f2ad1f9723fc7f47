package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remedy-project/remedy/pkg/color"
	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/remedy"
)

var (
	initMaxFiles   int
	initMaxLoc     int
	initMaxRecipes int
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a remedy repository in the current directory",
	Long: `Initialize a remedy repository in the current directory.

This creates:
  - .remedy/ directory with snapshot, index, attestation and lock storage
  - config.yaml with the default risk budget and retention policy
  - format_version file (version 1)`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fmtErr("cannot get current directory: %v", err)
			os.Exit(1)
		}

		opts := remedy.InitOptions{}
		if cmd.Flags().Changed("max-files") || cmd.Flags().Changed("max-loc") || cmd.Flags().Changed("max-recipes") {
			budget := model.DefaultBudget()
			if cmd.Flags().Changed("max-files") {
				budget.MaxFiles = initMaxFiles
			}
			if cmd.Flags().Changed("max-loc") {
				budget.MaxLocChanged = initMaxLoc
			}
			if cmd.Flags().Changed("max-recipes") {
				budget.MaxRecipesPerSession = initMaxRecipes
			}
			opts.Budget = &budget
		}

		client, err := remedy.Init(cwd, opts)
		if err != nil {
			fmtErr("failed to initialize repository: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"repo_root": client.RepoRoot(),
				"repo_id":   client.RepoID(),
			})
			return
		}
		fmt.Printf("Initialized remedy repository in %s\n", color.Success(client.RepoRoot()))
		budget := client.Config().Budget
		fmt.Printf("  Risk budget: %d weighted files, %d LOC, %d recipes per session\n",
			budget.MaxFiles, budget.MaxLocChanged, budget.MaxRecipesPerSession)
	},
}

func init() {
	initCmd.Flags().IntVar(&initMaxFiles, "max-files", 0, "risk-weighted file budget per session")
	initCmd.Flags().IntVar(&initMaxLoc, "max-loc", 0, "raw LOC budget per session")
	initCmd.Flags().IntVar(&initMaxRecipes, "max-recipes", 0, "recipe count budget per session")
	rootCmd.AddCommand(initCmd)
}
