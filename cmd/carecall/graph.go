package main

import (
	"fmt"

	"github.com/aretw0/carecall/internal/cli"
	"github.com/aretw0/carecall/internal/presentation/graph"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <scenario>",
	Short: "Print a scenario as a Mermaid flowchart",
	Long: `Prints the steps of a scenario as a Mermaid flowchart. With --session the
steps that session visited and its current step are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, cli.Options{Local: true, Durable: true})
		if err != nil {
			return err
		}
		defer app.Close()

		scenario, ok := app.Catalog.Scenario(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownScenario, args[0])
		}

		var state *domain.State
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			state, err = app.InspectionStore(false).Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("failed to load session %s: %w", sessionID, err)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), graph.GenerateMermaid(scenario, state))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the path of this session")
}
