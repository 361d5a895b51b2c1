package main

import (
	"context"
	"errors"
	"os"
	"time"

	"costledger/internal/amqp"
	"costledger/internal/cli"
	"costledger/internal/journal"
	applog "costledger/internal/log"
	"costledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger.Slog())

	logger.Info("Starting ledger-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ledger worker")
		os.Exit(1)
	}

	repo, err := journal.Open(cfg.JournalDBPath)
	if err != nil {
		logger.Error("Failed to open write journal", applog.FieldError, err, "path", cfg.JournalDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	journalWorker := worker.NewJournalWorker(repo, cfg.ReportBatchSize)

	ctx, done := cli.GracefulShutdown(logger.Slog(), 30*time.Second, nil)

	if err := journalWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup journal check", applog.FieldError, err)
	}

	go func() {
		if err := amqpClient.ConsumeWithReconnect(ctx, journalWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", applog.FieldError, err)
		}
	}()

	// Periodically surface writes the backend never confirmed.
	go func() {
		ticker := time.NewTicker(cfg.ReportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := journalWorker.ReportUnconfirmed(ctx); err != nil {
					logger.Error("Unconfirmed write report failed", applog.FieldError, err)
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
