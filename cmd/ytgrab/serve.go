package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/danfarias/ytgrab/internal/api"
	"github.com/danfarias/ytgrab/internal/app"
	"github.com/danfarias/ytgrab/internal/download"
	"github.com/danfarias/ytgrab/internal/infra/config"
	"github.com/danfarias/ytgrab/internal/infra/logger"
	"github.com/danfarias/ytgrab/internal/janitor"
	"github.com/danfarias/ytgrab/internal/platform"
	"github.com/danfarias/ytgrab/internal/registry"
	"github.com/danfarias/ytgrab/internal/storage"
	"github.com/danfarias/ytgrab/internal/ytdlp"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the download server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}

	if err := platform.ValidateDependencies(cfg.Tools.YtdlpPath); err != nil {
		return err
	}

	appCtx, err := bootstrap(cfg, log)
	if err != nil {
		return err
	}

	log.Info("download root: %s", appCtx.Layout.Root)
	log.Info("files expire after %d minute(s), sweep every %d minute(s)",
		cfg.Download.RetentionMinutes, cfg.Download.SweepIntervalMinutes)

	// Graceful shutdown on Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go appCtx.Sweeper.Run(ctx)

	e := echo.New()
	api.RegisterRoutes(e, appCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("shutting down...")
	if svc, ok := appCtx.Downloader.(*download.Service); ok {
		svc.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// bootstrap wires the shared resources into an app.Context.
func bootstrap(cfg *config.Config, log *logger.Logger) (*app.Context, error) {
	layout, err := storage.NewLayout(cfg.Download.Dir)
	if err != nil {
		return nil, err
	}

	reg := registry.New(cfg.Download.HistoryLimit)

	client, err := ytdlp.New(cfg.Tools.YtdlpPath, cfg.Tools.FfmpegDir, cfg.Tools.InfoTimeout())
	if err != nil {
		return nil, err
	}

	sweeper := janitor.New(layout, reg, log, cfg.Download.Retention(), cfg.Download.SweepInterval())

	svc := download.NewService(reg, layout, client, log,
		cfg.Download.Retention(), cfg.Download.MaxActivePerSession)

	appCtx := app.NewContext(cfg, log)
	appCtx.Registry = reg
	appCtx.Layout = layout
	appCtx.Downloader = svc
	appCtx.Fetcher = client
	appCtx.Sweeper = sweeper

	return appCtx, nil
}
