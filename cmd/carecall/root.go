package main

import (
	"fmt"
	"os"

	"github.com/aretw0/carecall/internal/cli"
	"github.com/aretw0/carecall/internal/config"
	"github.com/aretw0/carecall/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "carecall",
	Short: "carecall runs scripted caregiver support calls",
	Long: `carecall drives scripted phone conversations with home-care caregivers
(missed clock-ins, schedule problems, GPS issues) from the terminal, over HTTP or as MCP tools.

Configuration comes from the environment (and an optional .env file); flags override it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.String("catalog", "", "Directory of scenario documents (default: built-in scripts)")
	pf.String("redis", "", "Redis address for the session store")
	pf.String("session-dir", "", "Directory for the file session store (default for call and sessions: "+file.DefaultDir+")")
	pf.String("remote-url", "", "Base URL of a remote backend to delegate turns to")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.Bool("log-json", false, "Write logs as JSON")
	pf.Bool("debug", false, "Log every step the engine takes")
}

// loadConfig reads the environment and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("catalog") {
		cfg.CatalogDir, _ = flags.GetString("catalog")
	}
	if flags.Changed("redis") {
		cfg.RedisAddr, _ = flags.GetString("redis")
	}
	if flags.Changed("session-dir") {
		cfg.SessionDir, _ = flags.GetString("session-dir")
	}
	if flags.Changed("remote-url") {
		cfg.RemoteURL, _ = flags.GetString("remote-url")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
	return cfg, nil
}

// buildApp loads the configuration and wires the process.
func buildApp(cmd *cobra.Command, opts cli.Options) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts.Debug, _ = cmd.Flags().GetBool("debug")
	if opts.Debug {
		cfg.LogLevel = "debug"
	}
	return cli.Build(cmd.Context(), cfg, opts)
}
