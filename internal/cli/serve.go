// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/config"
	"github.com/jeranaias/shopchat/internal/server"
	"github.com/jeranaias/shopchat/internal/session"
	"github.com/jeranaias/shopchat/internal/telemetry"
)

const (
	// shutdownGrace bounds in-flight requests on shutdown. It covers one
	// upstream call.
	shutdownGrace = 130 * time.Second

	sweepInterval = time.Minute
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr   string
		source string
		title  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web chat server",
		Long: `Run the web chat server.

The catalog is loaded once at startup. If it cannot be loaded the server
still starts and visitors are told it is not ready; a local catalog file is
watched and picked up as soon as it appears or changes.`,
		Example: `  shopchat serve
  shopchat serve --addr :8080 --catalog https://example.com/productData.md
  ACCESS_PASSWORD=secret shopchat serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if source != "" {
				a.cfg.Catalog.Source = source
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a.cfg, title, a.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&source, "catalog", "", "catalog path or URL (overrides config)")
	cmd.Flags().StringVar(&title, "title", "", "page title")
	return cmd
}

// runServe runs the server, the session sweeper and the catalog watcher
// until ctx is cancelled or one of them fails.
func runServe(ctx context.Context, cfg *config.Config, title string, logger *zap.Logger) error {
	assistant, err := assistantFrom(cfg)
	if err != nil {
		return err
	}

	gate, err := server.NewGate(server.GateConfig{
		Password:     cfg.Auth.Password,
		PasswordHash: cfg.Auth.PasswordHash,
		Secret:       []byte(cfg.Auth.TokenSecret),
		TTL:          cfg.Auth.TokenTTL(),
	}, logger)
	if err != nil {
		return err
	}
	if !gate.Enabled() {
		logger.Warn("AUTH_DISABLED", zap.String("reason", "no access password configured"))
	}

	var ledger *telemetry.Ledger
	if cfg.Ledger.Path != "" {
		ledger, err = telemetry.Open(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("open usage ledger: %w", err)
		}
		defer ledger.Close()
	}

	srv, err := server.New(server.Options{
		Addr:      cfg.Server.Addr,
		Title:     title,
		Proxy:     newProxyService(cfg, logger),
		Assistant: assistant,
		Prompt:    promptBuilder(cfg),
		Sessions: session.Config{
			IdleTimeout: cfg.Server.SessionIdle(),
			MaxSessions: cfg.Server.MaxSessions,
		},
		Gate:      gate,
		Ledger:    ledger,
		RateLimit: cfg.Server.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	source := cfg.Catalog.Source
	loader := catalog.NewLoader(cfg.Catalog.FetchTimeout(), logger)
	if cat, err := loader.Load(ctx, source); err != nil {
		logger.Warn("CATALOG_UNAVAILABLE",
			zap.String("source", source),
			zap.String("effect", "sessions wait for a catalog"),
			zap.Error(err))
	} else {
		srv.SetCatalog(cat)
	}

	var watcher *catalog.Watcher
	if cfg.Catalog.Watch && !catalog.IsRemote(source) {
		watcher, err = catalog.NewWatcher(localPath(source), loader, srv.SetCatalog, logger)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, shutdownGrace)
	})
	g.Go(func() error {
		return srv.Sessions().Run(gctx, sweepInterval)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	return g.Wait()
}
