// Package commands implements the offerctl command line.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"offer-tracker/internal/service"
)

// New returns the root offerctl command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "offerctl",
		Short:         "Track offers, follow-ups and conversions from the command line.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if !isTerminal(cmd.OutOrStdout()) {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().String("db", "", "path to the SQLite database (env OFFERCTL_DATABASE)")
	cmd.PersistentFlags().String("legacy", "", "legacy store backend: disk, redis or memory (env OFFERCTL_LEGACY_BACKEND)")

	AddCommands(cmd)
	return cmd
}

// AddCommands registers the subcommands on topLevel.
func AddCommands(topLevel *cobra.Command) {
	addList(topLevel)
	addAdd(topLevel)
	addFollowups(topLevel)
	addComplete(topLevel)
	addStats(topLevel)
	addExport(topLevel)
	addReset(topLevel)
	addVersion(topLevel)
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// withRuntime opens the stores for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *service.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := service.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}

	runErr := fn(ctx, rt)
	if err := rt.Close(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
