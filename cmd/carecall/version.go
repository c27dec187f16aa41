package main

import (
	"fmt"

	"github.com/aretw0/carecall"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of carecall",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "carecall version %s\n", carecall.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
