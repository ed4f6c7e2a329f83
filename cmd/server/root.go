package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "songgen",
		Short: "Song generation API, worker and operator tools",
		Long: `songgen accepts song generation requests, runs them against the render
backend in the background and resolves the resulting media from the asset store.

Without a subcommand it runs "serve".

Configuration is read from config.yaml, .env and the environment, e.g.
  STORE_DRIVER    redis | postgres | memory
  QUEUE_MODE      asynq | inline
  STORAGE_PROVIDER cloudinary | s3`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)
			c.cfg = cfg
			return nil
		},
	}

	serve := newServeCmd(c)
	root.RunE = serve.RunE
	root.AddCommand(serve, newWorkerCmd(c), newResolveCmd(c), newTokenCmd(c))
	return root
}
