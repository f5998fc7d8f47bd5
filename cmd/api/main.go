package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retailer-portal/config"
	"retailer-portal/internal/adapter/gateway"
	httpHandler "retailer-portal/internal/adapter/http/handler"
	pgStorage "retailer-portal/internal/adapter/storage/postgres"
	redisStorage "retailer-portal/internal/adapter/storage/redis"
	"retailer-portal/internal/core/ports"
	"retailer-portal/internal/service"
	"retailer-portal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Retailer Services Portal")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	subRepo := pgStorage.NewSubmissionRepo(pool)
	optionRepo := pgStorage.NewOptionRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	settlementCache := redisStorage.NewSettlementCache(rdb)

	// Initialize payment gateway client
	gatewayClient := gateway.NewClient(cfg.Gateway, log)

	// Initialize business services
	ledgerSvc := service.NewLedgerService(walletRepo, txRepo, transactor, log)
	submissionSvc := service.NewSubmissionService(
		subRepo,
		optionRepo,
		ledgerSvc,
		gatewayClient,
		transactor,
		cfg.Gateway.RedirectURL,
		log,
	)
	settlementSvc := service.NewSettlementService(
		ledgerSvc,
		subRepo,
		gatewayClient,
		transactor,
		settlementCache,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		SubmissionSvc:  submissionSvc,
		SettlementSvc:  settlementSvc,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		JWT:            cfg.JWT,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
