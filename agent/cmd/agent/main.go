package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/agent/internal/compute"
	"github.com/tallyhq/tally/agent/internal/config"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute runs the command tree and returns the process exit code. Cobra's
// own error printing is silenced, so failures are logged to stderr here.
func execute(args []string, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		slog.New(slog.NewJSONHandler(stderr, nil)).Error("tally-agent failed", "err", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "tally-agent",
		Short:         "Roll up Todoist projects and ship them to tally-server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(), newRollupCmd())
	return root
}

// rollupOptions maps the rollup config section onto engine options.
func rollupOptions(rc config.RollupConfig) compute.Options {
	opts := compute.DefaultOptions()
	opts.DueSoonDays = rc.DueSoonDays
	opts.StaleDays = rc.StaleDays
	opts.WeekStart = rc.Weekday()
	return opts
}
