package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/jobs"
	"expensetracker/internal/log"
	"expensetracker/internal/repository"
	"expensetracker/internal/worker"
)

func main() {
	cfg, logger, err := cli.Bootstrap(log.ComponentWorker)
	if err != nil {
		cli.Exit(logger, "Configuration validation failed", err)
	}
	if cfg.AMQPURL == "" {
		cli.Exit(logger, "Export worker cannot start", errors.New("AMQP_URL is required"))
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Starting export worker", log.FieldOperation, log.OpStartup, "queue", cfg.AMQPQueue, "sheets", cfg.SheetsEnabled())
	if err := run(ctx, cfg, logger); err != nil {
		cli.Exit(logger, "Export worker stopped with error", err)
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	dests, err := cli.ExportDestinations(ctx, cfg)
	if err != nil {
		return err
	}
	runner := jobs.NewRunner(be.Jobs, repository.New(be.Blobs, nil), jobs.NewHub(), dests)
	w := worker.NewExportWorker(runner, be.Jobs)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeExportJobs(gctx, w.HandleExportJob)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error { return w.RunRecovery(gctx, cfg.RecoveryInterval) })
	return g.Wait()
}
