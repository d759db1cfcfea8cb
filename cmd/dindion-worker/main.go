package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"dindion/internal/amqp"
	"dindion/internal/cli"
	"dindion/internal/config"
	"dindion/internal/log"
	gsheet "dindion/internal/sheets/google"
	"dindion/internal/storage"
	"dindion/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting dindion-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	tree, err := storage.Open(cfg.SQLiteDBPath, storage.WithLogger(logger.WithComponent(log.ComponentStorage).Logger))
	if err != nil {
		logger.Error("Failed to open SQLite database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer tree.Close()

	sheetsClient, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(tree, sheetsClient, cfg.SyncBatchSize, logger.WithComponent(log.ComponentWorker).Logger)

	// Records written while the worker was down are picked up before consuming.
	logger.Info("Performing startup export check...")
	if err := mirror.StartupCheck(ctx); err != nil {
		logger.Error("Startup export check failed", log.FieldError, err)
	}

	sweeper := worker.NewSweeper(mirror.ProcessPending, cfg.SyncInterval, logger.WithComponent(log.ComponentWorker).Logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start export sweeper", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeChanges(gctx, mirror.HandleChange)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker...", log.FieldOperation, log.OpShutdown)
		return cli.Shutdown(logger, cli.ShutdownTimeout,
			cli.Step{Name: "sweeper", Run: sweeper.Stop},
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
