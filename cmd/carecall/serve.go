package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/carecall/internal/cli"
	httpAdapter "github.com/aretw0/carecall/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP backend",
	Long: `Serves the call backend protocol (/start-session, /chat, /update-context,
/reset-session-context) plus /scenarios, /health, /events (SSE), /metrics and /openapi.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, cli.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		cfg := app.Config
		if cmd.Flags().Changed("host") {
			cfg.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		noValidate, _ := cmd.Flags().GetBool("no-validate")

		handler, err := httpAdapter.NewServer(app.Engine, app.Sessions,
			httpAdapter.WithLogger(app.Logger),
			httpAdapter.WithMetrics(app.Metrics),
			httpAdapter.WithAllowedOrigins(cfg.AllowedOrigins...),
			httpAdapter.WithMaxInputSize(cfg.MaxInputSize),
			httpAdapter.WithRequestValidation(!noValidate),
		)
		if err != nil {
			return fmt.Errorf("error initializing http server: %w", err)
		}

		if app.Responder != nil {
			if err := app.Engine.CheckRemote(cmd.Context()); err != nil {
				app.Logger.Warn("remote responder not reachable, sessions will fall back to local scripts", "err", err)
			}
		}

		srv := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("carecall server listening",
				"address", srv.Addr,
				"scenarios", len(app.Catalog.IDs()),
				"remote", app.Responder != nil,
			)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			app.Logger.Info("shutting down", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				app.Logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			app.Logger.Info("carecall server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Interface to bind (default CARECALL_HOST or 0.0.0.0)")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default CARECALL_PORT or 8000)")
	serveCmd.Flags().Bool("no-validate", false, "Skip OpenAPI request validation")
}
