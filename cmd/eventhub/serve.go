// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/holomush/eventhub/internal/config"
	"github.com/holomush/eventhub/internal/control"
	"github.com/holomush/eventhub/internal/gateway"
	"github.com/holomush/eventhub/internal/hub"
	"github.com/holomush/eventhub/internal/logging"
	"github.com/holomush/eventhub/internal/observability"
	"github.com/holomush/eventhub/internal/upstream"
)

const (
	serviceName     = "eventhub"
	shutdownTimeout = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event hub",
		Long: `Connect to the configured collectors and serve websocket clients
on /streaming until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe runs every component until ctx is cancelled or one fails.
func runServe(ctx context.Context, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.SetDefault(serviceName, version, cfg.LogFormat, level)

	policy, err := hub.ParseOverflowPolicy(cfg.OverflowPolicy)
	if err != nil {
		return err
	}
	h := hub.New(hub.Config{OutboxSize: cfg.OutboxSize, Overflow: policy})

	collectors := make([]upstream.Collector, 0, len(cfg.Collectors))
	for _, c := range cfg.Collectors {
		collectors = append(collectors, upstream.Collector{Endpoint: c.Endpoint, URL: c.URL, Worlds: c.Worlds})
	}

	// ctrl is assigned before any link runs
	var ctrl *control.GRPCServer
	tracker := upstream.NewTracker(collectors, func(endpoint string, worlds []uint32, online bool) {
		h.LinkChanged(endpoint, worlds, online)
		if ctrl != nil {
			ctrl.SetUpstream(endpoint, online)
		}
	})
	if cfg.ControlAddr != "" {
		ctrl = control.NewGRPCServer(tracker.Endpoints())
	}

	var versions gateway.VersionSource
	if cfg.MetadataURL != "" {
		versions = upstream.NewVersionCache(upstream.NewHTTPFetcher(cfg.MetadataURL), cfg.MetadataTTL)
	}

	var gw *gateway.Server
	var obs *observability.Server
	var reg prometheus.Registerer
	if cfg.MetricsAddr != "" {
		obs = observability.NewServer(cfg.MetricsAddr, version,
			func() bool { return gw != nil && gw.Ready() },
			hub.RegisterMetrics, upstream.RegisterMetrics)
		reg = obs.Registry()
	}

	gw, err = gateway.NewServer(gateway.Config{
		Addr:           cfg.ListenAddr,
		IdleTimeout:    cfg.IdleTimeout,
		PingPeriod:     cfg.PingPeriod,
		AllowedOrigins: cfg.AllowedOrigins,
		CommandBurst:   cfg.CommandBurst,
		CommandRate:    cfg.CommandRate,
	}, h, versions, reg)
	if err != nil {
		return err
	}

	ingress := upstream.NewIngress(collectors, tracker, 0)
	beats := hub.NewHeartbeater(h, tracker, cfg.HeartbeatInterval)

	slog.Info("starting eventhub",
		"listen_addr", cfg.ListenAddr,
		"collectors", len(collectors),
		"heartbeat_interval", cfg.HeartbeatInterval,
		"overflow_policy", string(policy),
	)

	g, gctx := errgroup.WithContext(ctx)

	if obs != nil {
		obsErr, err := obs.Start()
		if err != nil {
			return oops.Wrapf(err, "start observability server")
		}
		g.Go(func() error { return watch(gctx, obsErr, "observability server") })
	}
	if ctrl != nil {
		ctrlErr, err := ctrl.Start(cfg.ControlAddr)
		if err != nil {
			stopServers(obs, nil)
			return oops.Wrapf(err, "start control server")
		}
		ctrl.SetServing(true)
		g.Go(func() error { return watch(gctx, ctrlErr, "control server") })
	}

	g.Go(func() error { return ingress.Run(gctx) })
	g.Go(func() error { return h.Run(gctx, ingress.Frames()) })
	g.Go(func() error { return beats.Run(gctx) })
	g.Go(func() error { return gw.Run(gctx) })

	err = g.Wait()
	stopServers(obs, ctrl)

	if err != nil {
		slog.Error("eventhub stopped", "error", err)
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// watch waits for a server error channel until ctx is cancelled.
func watch(ctx context.Context, errCh <-chan error, name string) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return oops.With("server", name).Wrap(err)
		}
		return nil
	}
}

func stopServers(obs *observability.Server, ctrl *control.GRPCServer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if ctrl != nil {
		if err := ctrl.Stop(ctx); err != nil {
			slog.Warn("error stopping control server", "error", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(ctx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
}
