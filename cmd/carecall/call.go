package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/carecall"
	"github.com/aretw0/carecall/internal/cli"
	"github.com/aretw0/carecall/internal/presentation/tui"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/runner"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call [scenario]",
	Short: "Run a call interactively in the terminal",
	Long: `Plays the agent side of a call and reads the caregiver's replies from stdin.

Commands available during the call:
  /context key=value ...   set context fields (e.g. clientName=Jane Roe)
  /reset                   clear the context and restart the scenario
  /quit                    leave the call

With --session the call is saved after every turn, and running the command
again without a scenario resumes it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetBool("local")
		jsonMode, _ := cmd.Flags().GetBool("json")
		noBanner, _ := cmd.Flags().GetBool("no-banner")
		sessionID, _ := cmd.Flags().GetString("session")

		app, err := buildApp(cmd, cli.Options{Local: local, Durable: true})
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		scenarioID := ""
		if len(args) > 0 {
			scenarioID = args[0]
		}

		session, err := openSession(ctx, app, sessionID, scenarioID)
		if err != nil {
			return err
		}

		var handler runner.IOHandler
		if jsonMode {
			handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		} else {
			var textOpts []runner.TextHandlerOption
			if tui.IsTerminal(os.Stdout) {
				if !noBanner {
					tui.PrintBanner(os.Stdout, carecall.Version)
				}
				textOpts = append(textOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
			}
			handler = runner.NewTextHandler(os.Stdin, os.Stdout, textOpts...)
		}

		runOpts := []runner.Option{
			runner.WithInputHandler(handler),
			runner.WithLogger(app.Logger),
			runner.WithMaxInputSize(app.Config.MaxInputSize),
		}
		if sessionID != "" {
			runOpts = append(runOpts, runner.WithStore(app.Store))
		}

		err = runner.NewRunner(runOpts...).Run(ctx, session, scenarioID)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// openSession resumes sessionID from the store when it has a call in progress
// and no scenario was asked for. Otherwise a fresh session is returned.
func openSession(ctx context.Context, app *cli.App, sessionID, scenarioID string) (*carecall.Session, error) {
	if sessionID == "" {
		if scenarioID == "" {
			return nil, fmt.Errorf("a scenario is required (one of %v)", app.Catalog.IDs())
		}
		return app.Engine.NewSession(), nil
	}

	if scenarioID != "" {
		return app.Engine.NewSessionWithID(sessionID), nil
	}

	state, err := app.Store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("session %s not found; pass a scenario to start it", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	app.Logger.Debug("resuming session", "session_id", sessionID, "scenario_id", state.ScenarioID)
	return app.Engine.ResumeSession(state), nil
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().String("session", "", "Persist the call under this session id (resume it by omitting the scenario)")
	callCmd.Flags().Bool("json", false, "Exchange JSON lines on stdin/stdout instead of text")
	callCmd.Flags().Bool("local", false, "Ignore any remote or OpenAI responder")
	callCmd.Flags().Bool("no-banner", false, "Do not print the banner")
}
