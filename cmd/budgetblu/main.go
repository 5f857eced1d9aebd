package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appamqp "budgetblu/internal/amqp"
	"budgetblu/internal/auth"
	"budgetblu/internal/budget"
	"budgetblu/internal/cache"
	"budgetblu/internal/catalog"
	"budgetblu/internal/config"
	"budgetblu/internal/currency"
	"budgetblu/internal/events"
	apphttp "budgetblu/internal/http"
	"budgetblu/internal/ledger"
	"budgetblu/internal/log"
	"budgetblu/internal/notify"
	"budgetblu/internal/report"
	"budgetblu/internal/storage"
	"budgetblu/internal/tier"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())

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

	// Ephemeral session tier and user snapshots, swept periodically.
	memStore := tier.NewMemoryStore()
	snapshots := tier.NewSnapshots(1000)
	cacheManager := cache.NewManager()
	cacheManager.Register(memStore)
	cacheManager.Register(snapshots)
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	sessions := auth.NewSessionManager(memStore, repo, snapshots, logger)
	authService := auth.NewService(repo, sessions, logger)
	activity := auth.NewActivityMonitor(sessions)
	defer activity.Close()

	bus := events.NewBus()

	// AMQP is optional: without a broker the ledger still works, only the
	// background budget worker goes unfed.
	var publisher ledger.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := appamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without broker", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	ledgerService := ledger.NewService(repo, bus, publisher, logger)

	alerts := notify.NewCenter(logger)
	defer alerts.Close()

	budgets := budget.NewTracker(repo, ledgerService, bus, alerts, logger)
	budgets.Subscribe(bus)

	converter := currency.NewConverter(cfg.RatesProviderURL, repo, bus, logger)
	selector := currency.NewSelector(repo, bus)

	cat, err := catalog.Load()
	if err != nil {
		logger.Warn("Category catalog unavailable, using built-in defaults", log.FieldError, err)
	}

	reports := report.NewService(ledgerService, converter, cat)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:      authService,
		Sessions:  sessions,
		Activity:  activity,
		Users:     repo,
		Ledger:    ledgerService,
		Budgets:   budgets,
		Converter: converter,
		Selector:  selector,
		Catalog:   cat,
		Alerts:    alerts,
		Reports:   reports,
		Bus:       bus,
		Logger:    logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	// Warm the rates table before accepting traffic; failure is fine, the
	// embedded defaults cover until the provider comes back.
	warmCtx, warmCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := converter.RefreshIfStale(warmCtx); err != nil {
		logger.Warn("Initial rates refresh failed", log.FieldError, err)
	}
	warmCancel()

	logger.Info("Starting budgetblu server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
