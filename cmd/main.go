package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"atelier/internal/alert"
	"atelier/internal/bootstrap"
	"atelier/internal/config"
	"atelier/internal/foreman"
	"atelier/internal/middleware"
	"atelier/internal/orders"
	"atelier/internal/repository"
	"atelier/internal/router"
	"atelier/internal/worker"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	if hasArg("--bootstrap-db") {
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Repositories & services ---
	orderRepo := repository.NewOrderRepository(db)
	itemRepo := repository.NewOrderItemRepository(db)
	workRepo := repository.NewWorkerRepository(db)
	orderSvc := orders.NewService(orderRepo, itemRepo, logger)

	// --- Worker mode: one ephemeral polling process ---
	if hasArg("--worker") {
		runner := worker.NewRunner(
			cfg.Worker,
			itemRepo, workRepo, orderRepo, orderSvc,
			worker.DefaultFactory(cfg.Providers),
			logger,
		)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Fatal("Worker failed", zap.Error(err))
		}
		return
	}

	// --- Server mode: API + foreman + worker spawner ---

	notifier, err := alert.New(cfg.Alert, logger)
	if err != nil {
		logger.Warn("Alert notifier disabled", zap.Error(err))
	}

	deduper, dedupeErr := middleware.NewDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		24*time.Hour,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for idempotency dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	spawner := worker.NewSpawner(cfg.Worker, cfg.Foreman.StallThreshold, itemRepo, workRepo, logger)
	if err := spawner.Start(); err != nil {
		logger.Fatal("Failed to start worker spawner", zap.Error(err))
	}

	supervisor := foreman.New(cfg.Foreman, itemRepo, workRepo, foreman.OSProcessController{}, notifier, logger)
	if err := supervisor.Start(); err != nil {
		logger.Fatal("Failed to start foreman", zap.Error(err))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, db, cfg, orderSvc, spawner, deduper, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting Atelier server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	spawner.Stop()
	supervisor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}
