package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerly/internal/amqp"
	"ledgerly/internal/backend"
	"ledgerly/internal/cli"
	applog "ledgerly/internal/log"
	"ledgerly/internal/services"
	"ledgerly/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)

	logger.Info("Starting ledger-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for ledger-worker")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Cleanup()

	writer, err := backend.NewSheetsWriter(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(be.Store, writer)

	// The monthly report job lives here because a single worker runs per
	// deployment, while the API may be replicated.
	ledger := services.NewLedgerService(be.Store, be.Budgets, nil, logger.WithComponent(applog.ComponentLedger))
	reports := services.NewReportService(be.Store,
		services.NewBudgetService(be.Store, ledger, be.Budgets),
		backend.NewNotifier(cfg, logger.Logger), cfg.Currency)
	scheduler := services.NewReportScheduler(reports, services.ReportSchedulerConfig{
		Schedule: cfg.ReportSchedule,
		Location: time.Local,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.Consume(gctx, syncWorker.HandleChange)
	})

	// Periodic full resync repairs rows whose change events were lost.
	g.Go(func() error {
		resync := func() {
			n, err := syncWorker.Resync(gctx)
			if err != nil {
				if gctx.Err() == nil {
					logger.Error("Periodic resync failed", "error", err, "mirrored", n)
				}
				return
			}
			logger.Info("Periodic resync completed", "mirrored", n)
		}
		resync()

		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				resync()
			}
		}
	})

	g.Go(func() error {
		if err := scheduler.Run(gctx, 30*time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("report scheduler: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
