package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/pdcpmux/internal/auth"
	"github.com/danmuck/pdcpmux/internal/config"
	"github.com/danmuck/pdcpmux/internal/logging"
	"github.com/danmuck/pdcpmux/internal/loopback"
	"github.com/danmuck/pdcpmux/internal/pdcp"
	"github.com/danmuck/pdcpmux/internal/pdcp/entity"
	"github.com/danmuck/pdcpmux/internal/server"
)

func main() {
	path := flag.String("config", "cmd/pdcpctl/config.toml", "pdcpctl service config path")
	flag.Parse()

	logging.ConfigureRuntime()
	cfg, err := loadServiceConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdcpctl: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "pdcpctl: %v\n", err)
		os.Exit(1)
	}
}

// run wires the multiplexer to loopback collaborators, applies the bearer
// profile and serves the admin surface until ctx is done.
func run(ctx context.Context, cfg serviceConfig) error {
	logger := logging.New("pdcpctl")

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}
	dir, err := config.ParseDirection(profile.Multiplexer.Direction)
	if err != nil {
		return err
	}
	mux, err := pdcp.New(profile.Options(entity.Factory))
	if err != nil {
		return err
	}

	meter := loopback.NewMeter()
	transport := loopback.NewLink("transport", cfg.QueueDepth, nil, logger)
	aggregation := loopback.NewLink("aggregation", cfg.QueueDepth, meter, logger)
	controlPlane := loopback.NewControlPlane()
	gateway := loopback.NewGateway(meter)

	mux.Init(transport, aggregation, controlPlane, gateway, logger, profile.Multiplexer.LCID, dir)
	if err := transport.Start(mux); err != nil {
		return err
	}
	if err := aggregation.Start(mux); err != nil {
		return err
	}
	defer func() {
		mux.Stop()
		transport.Close()
		aggregation.Close()
		logger.Info().
			Interface("transport", transport.Stats()).
			Interface("aggregation", aggregation.Stats()).
			Interface("control_plane", controlPlane.Counts()).
			Interface("gateway", gateway.Counts()).
			Msg("pdcpctl stopped")
	}()

	if err := config.Apply(mux, profile); err != nil {
		return err
	}
	logger.Info().
		Str("profile", cfg.ProfilePath).
		Int("bearers", len(profile.Bearers)).
		Int("mrbs", len(profile.MRBs)).
		Msg("pdcpctl profile applied")

	opts := []server.Option{
		server.WithThroughput(meter.Snapshot),
		server.WithLogger(logger),
	}
	if cfg.AdminToken != "" {
		opts = append(opts, server.WithAuth(auth.SharedToken(cfg.AdminToken)))
	}
	return server.New(cfg.Name, cfg.Addr, cfg.CorsOrigins, mux, opts...).Serve(ctx)
}
