package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	loamAdapter "github.com/aretw0/carecall/pkg/adapters/loam"
	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|dir]",
	Short: "Validate a scenario catalog",
	Long: `Checks a catalog for duplicate ids, unknown reply categories and dangling
next steps. A file is read as a JSON/YAML catalog, a directory as a document
catalog. Without an argument the built-in catalog is checked.

With --watch a directory catalog is validated again on every change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			return report(out, "built-in catalog", catalog.Default(), nil)
		}

		target := args[0]
		info, err := os.Stat(target)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			cat, err := catalog.Load(target)
			return report(out, target, cat, err)
		}

		loader, err := loamAdapter.Open(target)
		if err != nil {
			return err
		}
		cat, err := loader.Load(cmd.Context())
		if watch, _ := cmd.Flags().GetBool("watch"); !watch {
			return report(out, target, cat, err)
		}
		_ = report(out, target, cat, err)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchCatalog(ctx, out, target, loader)
	},
}

func watchCatalog(ctx context.Context, out io.Writer, target string, loader *loamAdapter.Loader) error {
	changes, err := loader.Watch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %s for changes (Ctrl+C to stop)\n", target)
	for id := range changes {
		fmt.Fprintf(out, "\n%s changed\n", id)
		cat, err := loader.Load(ctx)
		_ = report(out, target, cat, err)
	}
	return nil
}

func report(out io.Writer, target string, cat *catalog.Catalog, err error) error {
	if err != nil {
		var catErr *catalog.CatalogError
		if errors.As(err, &catErr) {
			fmt.Fprintf(out, "%s is invalid:\n", target)
			for _, p := range catErr.Problems {
				fmt.Fprintf(out, "  - %v\n", p)
			}
			return fmt.Errorf("%d problem(s) found", len(catErr.Problems))
		}
		return err
	}
	fmt.Fprintf(out, "%s is valid (%d scenarios, %d categories)\n", target, len(cat.IDs()), len(cat.Categories()))
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("watch", false, "Keep validating a directory catalog as it changes")
}
