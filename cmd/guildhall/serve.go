// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/guildhall/guildhall/internal/config"
	"github.com/guildhall/guildhall/internal/guild/postgres"
	"github.com/guildhall/guildhall/internal/logging"
	"github.com/guildhall/guildhall/internal/observability"
	"github.com/guildhall/guildhall/internal/perms"
	"github.com/guildhall/guildhall/internal/perms/audit"
	"github.com/guildhall/guildhall/internal/perms/cache"
	"github.com/guildhall/guildhall/internal/store"
	"github.com/guildhall/guildhall/pkg/errutil"
)

// authzStack bundles the resolution pipeline wired from a database pool.
type authzStack struct {
	Cache *cache.Cache
	Guard *perms.Guard
	Audit *audit.Logger

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheLastEvent prometheus.Gauge
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization service",
		Long: `Start the authorization service: connects to PostgreSQL, keeps the
permission cache invalidated via LISTEN/NOTIFY, and serves metrics
and health probes.`,
		RunE: runServe,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("guildhall", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	if cfg.DatabaseURL == "" {
		return oops.In("serve").
			Code("CONFIG_INVALID").
			Errorf("database_url is required (flag, config file, or GUILDHALL_DATABASE_URL)")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	slog.Info("starting authorization service",
		"log_format", cfg.LogFormat,
		"audit_mode", cfg.AuditMode,
	)

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("connected to database")

	stack := buildAuthz(pool, cfg)
	defer func() {
		if closeErr := stack.Audit.Close(); closeErr != nil {
			slog.Warn("error closing audit logger", "error", closeErr)
		}
	}()

	listener := cache.NewPgListener(cfg.DatabaseURL)
	if err := stack.Cache.StartWithListener(ctx, listener); err != nil {
		return oops.In("serve").
			Code("LISTENER_START_FAILED").
			Wrap(err)
	}

	slog.Info("cache invalidation listener started", "channel", cache.NotifyChannel)

	// Start observability server if configured
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		// Not ready while the notification stream is stale: permission
		// reads bypass the cache and hit the database directly.
		obsServer = observability.NewServer(cfg.MetricsAddr,
			func() bool { return !stack.Cache.IsStale() },
			stack.cacheHits, stack.cacheMisses, stack.cacheLastEvent,
		)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.In("serve").
				Code("OBSERVABILITY_START_FAILED").
				With("addr", cfg.MetricsAddr).
				Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Authorization service started")
	slog.Info("authorization service ready")

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	cancel()
	stack.Cache.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogError(slog.Default(), "error stopping observability server", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// buildAuthz wires the resolution pipeline from a connection pool.
func buildAuthz(pool *pgxpool.Pool, cfg *config.Config) *authzStack {
	roles := postgres.NewRoleRepository(pool)
	members := postgres.NewMemberRepository(pool)

	resolver := perms.NewResolver(roles, members)

	hits, misses, lastEvent := cache.Collectors()
	permCache := cache.New(resolver,
		cache.WithStalenessThreshold(cfg.CacheStale),
		cache.WithMetrics(hits, misses, lastEvent),
	)

	auditLogger := audit.NewLogger(audit.Mode(cfg.AuditMode), audit.NewSlogWriter(slog.Default()))
	guard := perms.NewGuard(permCache, auditLogger)

	return &authzStack{
		Cache:          permCache,
		Guard:          guard,
		Audit:          auditLogger,
		cacheHits:      hits,
		cacheMisses:    misses,
		cacheLastEvent: lastEvent,
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
