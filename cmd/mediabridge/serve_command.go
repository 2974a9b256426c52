package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slipstream/mediabridge/internal/api"
	"github.com/slipstream/mediabridge/internal/config"
	"github.com/slipstream/mediabridge/internal/database"
	"github.com/slipstream/mediabridge/internal/health"
	"github.com/slipstream/mediabridge/internal/metadata"
	"github.com/slipstream/mediabridge/internal/scheduler"
	"github.com/slipstream/mediabridge/internal/scheduler/tasks"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP resolution server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override the listen port")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	log := newLogger(cfg, nil)
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting mediabridge")

	exec := newExecutor(cfg, log)
	svc := metadata.NewService(cfg, exec, log.Logger)

	healthService := health.NewService(log.Logger)
	healthService.RegisterItem(metadata.UpstreamTMDB, "TMDB")
	healthService.RegisterItem(metadata.UpstreamCatalog, "Catalog")
	svc.SetHealthReporter(healthService)

	if cfg.Cache.PersistPath != "" {
		db, err := database.Open(parent, cfg.Cache.PersistPath)
		if err != nil {
			return fmt.Errorf("open cache store: %w", err)
		}
		defer db.Close()

		if _, err := svc.Cache().AttachStore(parent, db); err != nil {
			log.Warn().Err(err).Str("path", db.Path()).Msg("cache store unreadable, continuing in memory")
		}
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		return err
	}
	if err := tasks.RegisterCachePruneTask(sched, svc, cfg.Cache.PruneCron); err != nil {
		return fmt.Errorf("register cache prune task: %w", err)
	}
	sched.Start()

	server := api.NewServer(cfg, api.Dependencies{
		Metadata:  svc,
		Scheduler: sched,
		Health:    healthService,
		Logs:      log,
	}, log.Logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Address())
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}
	svc.Cache().Wait()

	log.Info().Msg("server stopped")
	return serveErr
}
