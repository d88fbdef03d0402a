package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/accounts"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	"github.com/meridian-erp/meridian-erp/internal/guard"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/opening"
	"github.com/meridian-erp/meridian-erp/internal/periods"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, depreciation runs will not be serialized", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, auditLogger)

	sequenceService := sequence.NewService(sequence.NewRepository(pool))
	periodsService := periods.NewService(periods.NewRepository(pool))

	ledgerService := ledger.NewService(ledger.NewRepository(pool), sequenceService, periodsService, auditLogger)
	ledgerService.WithMetrics(metrics)

	facts := guard.NewFactStore(pool)
	guardService := guard.NewService(guard.NewRepository(pool), auditLogger, metrics,
		guard.NewAccountGuard(facts),
		guard.NewJournalEntryGuard(facts),
		guard.NewInvoiceGuard(facts),
		guard.NewCustomerGuard(facts),
		guard.NewFixedAssetGuard(facts),
		guard.NewCurrencyGuard(facts, cfg.BaseCurrency),
	)

	assetsService := assets.NewService(assets.NewRepository(pool), ledgerService, redisClient, auditLogger, metrics)
	openingService := opening.NewService(accountsService, ledgerService, cfg.OpeningOffsetCode)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Metrics:         metrics,
		AccountsHandler: accounts.NewHandler(logger, accountsService),
		LedgerHandler:   ledger.NewHandler(logger, ledgerService),
		GuardHandler:    guard.NewHandler(logger, guardService),
		AssetsHandler:   assets.NewHandler(logger, assetsService),
		OpeningHandler:  opening.NewHandler(logger, openingService),
		SequenceHandler: sequence.NewHandler(logger, sequenceService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
