package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/carecall/internal/cli"
	"github.com/aretw0/carecall/pkg/adapters/remote"
	"github.com/aretw0/carecall/pkg/api"
	"github.com/spf13/cobra"
)

var scenariosCmd = &cobra.Command{
	Use:     "scenarios",
	Aliases: []string{"ls"},
	Short:   "List the available call scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		fromRemote, _ := cmd.Flags().GetBool("remote")

		app, err := buildApp(cmd, cli.Options{Local: true})
		if err != nil {
			return err
		}
		defer app.Close()

		var infos []api.ScenarioInfo
		if fromRemote {
			if app.Config.RemoteURL == "" {
				return fmt.Errorf("--remote needs CARECALL_REMOTE_URL (or --remote-url)")
			}
			client := remote.NewClient(app.Config.RemoteURL, remote.WithLogger(app.Logger))
			infos, err = client.Scenarios(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list remote scenarios: %w", err)
			}
		} else {
			for _, s := range app.Catalog.Scenarios() {
				infos = append(infos, api.FromSummary(s))
			}
		}

		out := cmd.OutOrStdout()
		if jsonMode {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tFIELDS")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, info.Name, strings.Join(info.ContextFields, ", "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
	scenariosCmd.Flags().Bool("json", false, "Print the listing as JSON")
	scenariosCmd.Flags().Bool("remote", false, "List the scenarios of the remote backend")
}
