package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/service"
	"github.com/makeasinger/songgen/internal/worker"
)

func newWorkerCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the asynq generation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Queue.Mode == "inline" {
				return errors.New("worker requires queue.mode=asynq")
			}
			if c.cfg.Store.Driver == "memory" {
				return errors.New("a standalone worker cannot share the memory store")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comps, err := newComponents(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer comps.Close()

			return runWorker(ctx, comps)
		},
	}
}

func asynqLogLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return asynq.DebugLevel
	case "warn", "warning":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}

func newWorkerServer(cfg *config.Config) *asynq.Server {
	concurrency := cfg.Queue.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			service.QueueGeneration: 1,
		},
		Logger:   logger.WithComponent("asynq"),
		LogLevel: asynqLogLevel(cfg.Server.LogLevel),
	})
}

// runWorker processes generation tasks until ctx is cancelled.
func runWorker(ctx context.Context, comps *components) error {
	srv := newWorkerServer(comps.cfg)

	mux := asynq.NewServeMux()
	worker.NewGenerationWorker(comps.generation).Register(mux)

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	logger.Infof("Generation worker started (concurrency %d)", comps.cfg.Queue.Concurrency)

	<-ctx.Done()
	srv.Shutdown()
	return nil
}
