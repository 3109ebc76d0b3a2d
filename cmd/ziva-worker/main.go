package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ToreHetland/ZivaFinance/internal/amqp"
	"github.com/ToreHetland/ZivaFinance/internal/config"
	"github.com/ToreHetland/ZivaFinance/internal/log"
	"github.com/ToreHetland/ZivaFinance/internal/services"
	"github.com/ToreHetland/ZivaFinance/internal/sheets"
	gsheet "github.com/ToreHetland/ZivaFinance/internal/sheets/google"
	"github.com/ToreHetland/ZivaFinance/internal/storage"
	"github.com/ToreHetland/ZivaFinance/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)
	logger.Info("Starting ziva-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Sheet mirroring is optional; the worker still reconciles settlements
	// and generates recurring transactions without it.
	var mirror sheets.MirrorWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Sheet mirroring disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reconciler := services.NewSettlementReconciler(repo, repo)
	ledgerSvc := services.NewLedgerService(repo, reconciler, nil)
	recurring := services.NewRecurringGenerator(repo, ledgerSvc)
	w := worker.NewLedgerWorker(repo, reconciler, mirror, recurring)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
			return w.HandleLedgerEvent(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		w.RunRecurringLoop(ctx, cfg.DefaultOwner, cfg.RecurringInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
