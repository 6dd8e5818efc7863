package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/jobs"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/repository"
	"expensetracker/internal/services"
	"expensetracker/internal/worker"
)

const cacheCleanupInterval = time.Minute

func main() {
	cfg, logger, err := cli.Bootstrap(log.ComponentApp)
	if err != nil {
		cli.Exit(logger, "Configuration validation failed", err)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		cli.Exit(logger, "Expense tracker stopped with error", err)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	m := metrics.New()

	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	repo := repository.New(be.Blobs, m)
	if cfg.SeedSampleData {
		n, err := repo.SeedSampleData(ctx)
		if err != nil {
			return fmt.Errorf("seed sample data: %w", err)
		}
		logger.Info("Sample data checked", "added", n)
	}
	expenses := services.NewExpenseService(repo, m)

	dests, err := cli.ExportDestinations(ctx, cfg)
	if err != nil {
		return err
	}
	hub := jobs.NewHub()
	hub.Subscribe(func(e jobs.Event) { m.JobStatus(string(e.Status)) })
	runner := jobs.NewRunner(be.Jobs, repo, hub, dests)

	g, gctx := errgroup.WithContext(ctx)

	var queue jobs.Queue
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer client.Close()
		queue = jobs.QueueFunc(client.PublishExportJob)
		logger.Info("Export jobs published to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		local := jobs.NewLocalQueue(runner, cfg.ExportWorkers, 0)
		queue = local
		recovery := worker.NewExportWorker(runner, be.Jobs)
		g.Go(func() error { return local.Start(gctx) })
		g.Go(func() error { return recovery.RunRecovery(gctx, cfg.RecoveryInterval) })
	}
	jobService := jobs.NewService(be.Jobs, repo, queue, hub)

	caches := cache.NewManager(expenses.Caches()...)
	g.Go(func() error { return caches.Run(gctx, cacheCleanupInterval) })

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Expenses:           expenses,
		Jobs:               jobService,
		Metrics:            m,
		Logger:             logger,
		Ping:               be.Ping,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ShareBaseURL:       cfg.ShareBaseURL,
	})

	g.Go(func() error {
		logger.Info("Starting expense tracker",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp", cfg.AMQPURL != "",
			"sheets", cfg.SheetsEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown, "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
