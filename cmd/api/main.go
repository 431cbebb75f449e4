package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-wallet-engine/config"
	httpHandler "marketplace-wallet-engine/internal/adapter/http/handler"
	pgStorage "marketplace-wallet-engine/internal/adapter/storage/postgres"
	redisStorage "marketplace-wallet-engine/internal/adapter/storage/redis"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/internal/service"
	"marketplace-wallet-engine/pkg/logger"
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
		Msg("Starting Marketplace Wallet Engine")

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
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	payoutRepo := pgStorage.NewPayoutRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	notifier := service.NewHTTPNotificationService(
		cfg.Notification,
		sigSvc,
		&http.Client{Timeout: cfg.Notification.Timeout},
		log,
	)
	projector := service.NewProjectorService(ledgerRepo, walletRepo, cfg.Withdrawal.CountRejected)
	walletSvc := service.NewWalletService(walletRepo, cfg.Withdrawal.MonthlyLimit, log)
	settlementSvc := service.NewSettlementService(ledgerRepo, walletRepo, walletSvc, projector, idempotencyCache, transactor, log)
	withdrawalSvc := service.NewWithdrawalService(ledgerRepo, walletRepo, payoutRepo, projector, transactor, notifier, cfg.Withdrawal, log)
	creditsSvc := service.NewCreditsService(ledgerRepo, walletRepo, projector, transactor, notifier, log)
	payoutSvc := service.NewPayoutService(payoutRepo, encSvc, notifier, log)
	reportingSvc := service.NewReportingService(ledgerRepo, walletSvc, projector, log)

	// Background sweep for timed-out pending credit purchases
	sweeper := service.NewSweeper(ledgerRepo, walletRepo, projector, transactor, notifier, cfg.Sweep, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Gateway:        cfg.Gateway,
		AdminTokenHash: cfg.Admin.TokenHash,
		SettlementSvc:  settlementSvc,
		WithdrawalSvc:  withdrawalSvc,
		CreditsSvc:     creditsSvc,
		PayoutSvc:      payoutSvc,
		ReportingSvc:   reportingSvc,
		SigSvc:         sigSvc,
		NonceStore:     nonceStore,
		TokenSvc:       tokenSvc,
		HashSvc:        hashSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
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
