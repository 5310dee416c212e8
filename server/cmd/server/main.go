package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/tallyhq/tally/pkg/rpc"
	"github.com/tallyhq/tally/server/internal/alerts"
	"github.com/tallyhq/tally/server/internal/auth"
	"github.com/tallyhq/tally/server/internal/config"
	"github.com/tallyhq/tally/server/internal/receiver"
	"github.com/tallyhq/tally/server/internal/store"
	"github.com/tallyhq/tally/server/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve a built dashboard from this directory (e.g. ui/dist); empty disables")
	logLevel := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "tally-server: -log-level: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *uiDir); err != nil {
		slog.Error("tally-server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, uiDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	sc := cfg.Server
	slog.Info("tally-server starting",
		"config", configPath,
		"grpc_port", sc.GRPCPort,
		"http_port", sc.HTTPPort,
		"auth_mode", sc.Auth.Mode,
		"snapshot_ttl", sc.Snapshot.TTL,
		"broadcast_interval", sc.BroadcastInterval,
		"alert_rules", len(sc.Alerts.Rules),
	)

	alertEngine, err := alerts.New(sc.Alerts)
	if err != nil {
		return fmt.Errorf("alert rules: %w", err)
	}
	if sc.Auth.Mode == auth.ModeAPIKey && sc.Auth.Key() == "" {
		slog.Warn("auth mode is apikey but the key env var is empty; accepting all calls",
			"key_env", sc.Auth.KeyEnv)
	}

	st := store.New(sc.Snapshot.TTL)
	go st.Run(ctx)

	hub := ws.New(st, sc.BroadcastInterval)
	go hub.Run(ctx)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", sc.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc :%d: %w", sc.GRPCPort, err)
	}
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(
		auth.APIKeyInterceptor(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key())))
	rpc.RegisterRollupServiceServer(grpcSrv, receiver.New(st, alertEngine))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           newHTTPHandler(st, alertEngine, hub, sc.Auth, uiDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		slog.Info("gRPC receiver listening", "port", sc.GRPCPort)
		errc <- grpcSrv.Serve(lis)
	}()
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("tally-server shutting down")
	case err = <-errc:
		slog.Error("listener stopped, shutting down", "err", err)
	}

	grpcSrv.GracefulStop()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("HTTP shutdown", "err", serr)
	}
	return err
}
