package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danfarias/ytgrab/internal/infra/config"
	"github.com/danfarias/ytgrab/internal/infra/logger"
	"github.com/danfarias/ytgrab/internal/janitor"
	"github.com/danfarias/ytgrab/internal/registry"
	"github.com/danfarias/ytgrab/internal/storage"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one cleanup pass over the download tree and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
			if err != nil {
				return fmt.Errorf("logger error: %w", err)
			}

			layout, err := storage.NewLayout(cfg.Download.Dir)
			if err != nil {
				return err
			}

			// No live sessions in one-shot mode; the registry is only here
			// so the sweeper has something to prune against.
			reg := registry.New(cfg.Download.HistoryLimit)
			sweeper := janitor.New(layout, reg, log, cfg.Download.Retention(), cfg.Download.SweepInterval())

			deleted := sweeper.Sweep()
			fmt.Printf("Removed %d expired file(s)\n", deleted)
			return nil
		},
	}
}
