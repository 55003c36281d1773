package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"flowtrack/internal/amqp"
	"flowtrack/internal/cli"
	"flowtrack/internal/config"
	gsheet "flowtrack/internal/store/google"
	"flowtrack/internal/worker"
)

const consumeRetryDelay = 5 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting flowtrack-worker")

	cfg := config.Load()
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	loc := cli.Location(logger, cfg)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath, loc)
	defer sqliteRepo.Close()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Location:        loc,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	if err := sheetsClient.EnsureHeader(context.Background()); err != nil {
		logger.Error("Failed to prepare sheet", "error", err, "sheet", cfg.GoogleSheetName)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(sqliteRepo, sheetsClient, cfg.SyncBatchSize)
	scheduler, err := worker.NewScheduler(syncWorker, cfg.SyncInterval)
	if err != nil {
		logger.Error("Invalid sync schedule", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consume(gctx, logger, amqpClient, syncWorker)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

// consume keeps the AMQP consumer alive across broker restarts until ctx is
// done.
func consume(ctx context.Context, logger *slog.Logger, client *amqp.Client, w *worker.SyncWorker) error {
	for {
		err := client.Consume(ctx, w.HandleMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("Message consumption interrupted, retrying",
			"error", err,
			"retry_in", consumeRetryDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(consumeRetryDelay):
		}
	}
}
