// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/autologout/internal/config"
	"github.com/jeranaias/autologout/internal/logging"
	"github.com/jeranaias/autologout/internal/metrics"
	"github.com/jeranaias/autologout/internal/server"
	"github.com/jeranaias/autologout/internal/session"
	"github.com/jeranaias/autologout/internal/storage"
)

type serveOptions struct {
	addr    string
	driver  string
	dsn     string
	noWatch bool
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session authority",
		Long: `Run the HTTP server that owns session idle state.

The server answers time-left probes, keep-alives and logouts, rejects
requests for sessions past their timeout plus padding, and sweeps expired
sessions in the background. Edits to the configuration file are picked up
without a restart.`,
		Example: `  autologout serve
  autologout serve --addr :8787 --storage sqlite --dsn ./sessions.db
  AUTOLOGOUT_ADMIN_TOKEN=secret autologout serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.driver, "storage", "", "session store: memory, sqlite or postgres (overrides storage.driver)")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "session store DSN (overrides storage.dsn)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload the configuration file on change")
	return cmd
}

func (a *app) runServe(ctx context.Context, opts serveOptions) error {
	cfg, path, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.driver != "" {
		cfg.Storage.Driver = opts.driver
	}
	if opts.dsn != "" {
		cfg.Storage.DSN = opts.dsn
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	audit := logging.NewAudit(cfg.Logging, logger)
	defer audit.Sync()

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	var srv *server.Server
	manager := session.NewManager(store,
		session.WithLogger(logger.Named("session")),
		session.WithExpireHook(func(s *session.Session) { srv.SessionExpired(s) }),
	)

	var source server.ConfigSource = server.StaticConfig{Config: cfg}
	var watcher *config.Watcher
	if path != "" && !opts.noWatch {
		watcher = config.NewWatcher(path, cfg, logger.Named("config"))
		watcher.OnChange(func(*config.Config) { metrics.ConfigReloads.Inc() })
		source = watcher
	}

	srv = server.New(source, manager,
		server.WithLogger(logger.Named("http")),
		server.WithAudit(audit),
	)

	logger.Info("starting autologout server",
		zap.String("version", Version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.Int("timeout_secs", cfg.Autologout.TimeoutSecs),
		zap.Int("padding_secs", cfg.Autologout.PaddingSecs),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return srv.RunSweeper(gctx) })
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
