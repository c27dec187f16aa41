package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/carecall/internal/cli"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored call sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, cli.Options{Local: true, Durable: true})
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		ids, err := app.Sessions.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSCENARIO\tSTATUS\tSTEP\tBACKEND")
		for _, id := range ids {
			state, err := app.Store.Load(ctx, id)
			if err != nil {
				fmt.Fprintf(w, "%s\t-\tunreadable\t-\t-\n", id)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, state.ScenarioID, state.Status, state.CurrentStepID, state.Backend)
		}
		return w.Flush()
	},
}

var sessionsInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print a stored session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mask, _ := cmd.Flags().GetBool("mask")

		app, err := buildApp(cmd, cli.Options{Local: true, Durable: true})
		if err != nil {
			return err
		}
		defer app.Close()

		state, err := app.InspectionStore(mask).Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", args[0], err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	},
}

var sessionsRemoveCmd = &cobra.Command{
	Use:     "rm [session-id...]",
	Aliases: []string{"delete"},
	Short:   "Delete stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return fmt.Errorf("give at least one session id, or --all")
		}

		app, err := buildApp(cmd, cli.Options{Local: true, Durable: true})
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		ids := args
		if all {
			ids, err = app.Sessions.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
		}

		for _, id := range ids {
			if err := app.Sessions.Delete(ctx, id); err != nil {
				return fmt.Errorf("failed to delete session %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsInspectCmd, sessionsRemoveCmd)
	sessionsInspectCmd.Flags().Bool("mask", false, "Mask personal data (names, phones, emails, addresses)")
	sessionsRemoveCmd.Flags().Bool("all", false, "Delete every stored session")
}
