package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/agent/internal/compute"
	"github.com/tallyhq/tally/agent/internal/config"
	"github.com/tallyhq/tally/agent/internal/render"
	"github.com/tallyhq/tally/agent/internal/todoist"
)

func newRollupCmd() *cobra.Command {
	var (
		configPath   string
		snapshotPath string
		sourceID     string
		asJSON       bool
		at           string
	)

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Compute one rollup and print it",
		Long: "Fetches a snapshot once (from the configured source, or from a dataset file " +
			"with --snapshot) and prints the per-project rollup as a table or JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				now = t
			}

			opts := compute.DefaultOptions()
			var src todoist.Source
			switch {
			case snapshotPath != "":
				src = &todoist.FileSource{Path: snapshotPath}
			default:
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if sourceID == "" {
					sourceID = cfg.Agent.SourceID
				}
				opts = rollupOptions(cfg.Agent.Rollup)
				if src, err = todoist.New(cfg.Agent.Source); err != nil {
					return err
				}
			}

			snap, err := src.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			r := compute.NewEngine(sourceID, opts).Process(snap, now)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			return render.Rollup(out, r, render.Options{
				Color: out == os.Stdout && render.IsTerminal(os.Stdout),
				Now:   now,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "read a dataset JSON file instead of the configured source")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "source id stamped on the rollup")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVar(&at, "now", "", "evaluate as of this RFC 3339 instant")
	return cmd
}
