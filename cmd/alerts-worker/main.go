package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appamqp "budgetblu/internal/amqp"
	"budgetblu/internal/budget"
	"budgetblu/internal/config"
	"budgetblu/internal/currency"
	gsheet "budgetblu/internal/export/google"
	"budgetblu/internal/ledger"
	"budgetblu/internal/log"
	"budgetblu/internal/notify"
	"budgetblu/internal/storage"
	"budgetblu/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	logger.Info("Starting alerts-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Google Sheets export is optional.
	var exporter worker.SummaryExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := appamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The worker has no HTTP surface; alerts raised here land in its own
	// center and surface through the exported summaries.
	alerts := notify.NewCenter(logger)
	defer alerts.Close()

	ledgerService := ledger.NewService(repo, nil, nil, logger)
	budgets := budget.NewTracker(repo, ledgerService, nil, alerts, logger)
	converter := currency.NewConverter(cfg.RatesProviderURL, repo, nil, logger)

	alertWorker := worker.NewAlertWorker(budgets, exporter, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	err = worker.Run(ctx, amqpClient, alertWorker, converter, cfg.AlertCheckInterval, cfg.RatesRefresh)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	// Give in-flight handlers a moment to settle.
	time.Sleep(time.Second)
	logger.Info("Worker shutdown complete")
}
