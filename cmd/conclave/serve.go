// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/EldestGruff/sidhe-conclave/internal/bus"
	"github.com/EldestGruff/sidhe-conclave/internal/config"
	"github.com/EldestGruff/sidhe-conclave/internal/logging"
	"github.com/EldestGruff/sidhe-conclave/internal/observability"
	"github.com/EldestGruff/sidhe-conclave/internal/registry"
	"github.com/EldestGruff/sidhe-conclave/internal/transport"
	"github.com/EldestGruff/sidhe-conclave/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of the observability server.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator (bus, registry, observability)",
		Long: `Start the orchestrator process: connect the message bus to the
transport, discover the plugin catalog, and serve health and metrics
endpoints until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	cmd.Flags().String("transport.url", "", "pub/sub transport URL (overrides config)")
	cmd.Flags().String("observability.addr", "", "health/metrics listen address (overrides config)")
	cmd.Flags().String("log.format", "", "log format: json or text (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("conclave", version, cfg.Log.Format)
	slog.Info("starting orchestrator", "transport", cfg.Transport.URL)

	catalog := cfg.Plugins
	if len(catalog) == 0 {
		catalog = defaultCatalog()
	}

	tr, err := transport.NewRedis(cfg.Transport.URL)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	reg := registry.New(catalog, builtinFactories())

	// The status closures capture b lazily, so the observability server can
	// be constructed before the bus that feeds it.
	var b *bus.Bus
	obs := observability.NewServer(cfg.Observability.Addr,
		func() bool { return b.Connected() },
		func(ctx context.Context) observability.Status {
			return observability.Status{
				BusHealth: b.HealthCheck(ctx),
				Plugins:   reg.Statuses(),
			}
		},
	)

	pending := bus.NewPendingTable()
	b = bus.New(tr, pending,
		bus.WithDefaultTimeout(cfg.Request.DefaultTimeout),
		bus.WithConnectAttempts(uint64(cfg.Request.MaxRetries)),
		bus.WithMetrics(bus.NewMetrics(obs.Registry(), pending)),
	)

	// Transport-initialization failure is survivable: the bus degrades and
	// the health endpoint reports it.
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start bus: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			errutil.LogError(slog.Default(), "bus close failed", err)
		}
	}()

	reg.Discover(ctx)
	slog.Info("plugin discovery complete", "statuses", reg.Statuses())

	if err := b.PublishDiscovery(ctx); err != nil {
		slog.Warn("discovery broadcast not published", "error", err)
	}

	errCh, err := obs.Start()
	if err != nil {
		return fmt.Errorf("start observability server: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := obs.Stop(stopCtx); err != nil {
			errutil.LogError(slog.Default(), "observability stop failed", err)
		}
	}()

	if err := b.PublishEvent(ctx, "orchestrator_started", map[string]any{
		"plugins": reg.Available(),
	}); err != nil {
		slog.Warn("startup event not published", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("observability server failed: %w", err)
		}
	case <-ctx.Done():
	}

	return nil
}
