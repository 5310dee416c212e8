package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/agent/internal/compute"
	"github.com/tallyhq/tally/agent/internal/config"
	"github.com/tallyhq/tally/agent/internal/shipper"
	"github.com/tallyhq/tally/agent/internal/todoist"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the task source, compute rollups and ship them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runAgent(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	return cmd
}

func runAgent(ctx context.Context, configPath string) error {
	slog.Info("tally-agent starting", "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return err
	}
	a := cfg.Agent
	slog.Info("config loaded",
		"source_id", a.SourceID,
		"source_type", a.Source.Type,
		"server_endpoint", a.ServerEndpoint,
		"poll_interval", a.PollInterval,
	)

	src, err := todoist.New(a.Source)
	if err != nil {
		slog.Error("failed to build task source", "err", err)
		return err
	}
	engine := compute.NewEngine(a.SourceID, rollupOptions(a.Rollup))

	// Hot-reload swaps rollup options. Source, endpoint and auth changes
	// need a restart.
	go func() {
		if err := config.Watch(ctx, configPath, func(updated *config.Config) {
			engine.SetOptions(rollupOptions(updated.Agent.Rollup))
			slog.Info("config hot-reloaded",
				"due_soon_days", updated.Agent.Rollup.DueSoonDays,
				"stale_days", updated.Agent.Rollup.StaleDays,
				"week_start", updated.Agent.Rollup.WeekStart,
			)
			if updated.Agent.Source != a.Source || updated.Agent.ServerEndpoint != a.ServerEndpoint {
				slog.Warn("config: source or server changes take effect after restart")
			}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(a)
	go ship.Run(ctx)

	poll := func(now time.Time) {
		snap, err := src.Fetch(ctx)
		if err != nil {
			slog.Warn("fetch error", "source", a.SourceID, "err", err)
			return
		}
		r := engine.Process(snap, now)
		ship.Ship(r)
		slog.Debug("queued rollup",
			"source", a.SourceID,
			"run_id", r.RunID,
			"projects", len(r.Projects),
			"pending", ship.Pending(),
		)
	}

	// Poll once immediately so the server has data before the first tick.
	poll(time.Now())

	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			st := ship.Stats()
			slog.Info("tally-agent shutting down",
				"delivered", st.Delivered,
				"discarded", st.Discarded,
				"evicted", st.Evicted,
				"pending", st.Pending,
			)
			return nil
		case t := <-ticker.C:
			poll(t)
		}
	}
}
