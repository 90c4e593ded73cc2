package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cross-border-escrow/config"
	httpHandler "cross-border-escrow/internal/adapter/http/handler"
	"cross-border-escrow/internal/adapter/payment"
	pgStorage "cross-border-escrow/internal/adapter/storage/postgres"
	redisStorage "cross-border-escrow/internal/adapter/storage/redis"
	"cross-border-escrow/internal/core/ports"
	"cross-border-escrow/internal/service"
	"cross-border-escrow/pkg/logger"
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
		Msg("Starting Cross-Border Escrow Engine")

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
	partyRepo := pgStorage.NewPartyRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	historyRepo := pgStorage.NewHistoryRepo(pool)
	disputeRepo := pgStorage.NewDisputeRepo(pool)
	voteRepo := pgStorage.NewVoteRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	approvalRepo := pgStorage.NewApprovalRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	eventPublisher := redisStorage.NewEventPublisher(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize payment rail client
	rail := payment.NewHTTPRail(
		cfg.Rail.BaseURL,
		cfg.Rail.APIKey,
		&http.Client{Timeout: cfg.Rail.Timeout},
		log,
	)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	authSvc := service.NewAuthService(partyRepo, hashSvc, tokenSvc)
	escrowSvc := service.NewEscrowService(
		txRepo,
		historyRepo,
		disputeRepo,
		partyRepo,
		transactor,
		rail,
		eventPublisher,
		cfg.Escrow.DisputeWindow,
		log,
	)
	disputeSvc := service.NewDisputeService(
		disputeRepo,
		voteRepo,
		txRepo,
		historyRepo,
		transactor,
		rail,
		eventPublisher,
		idempotencyCache,
		cfg.Escrow.VoteQuorum,
		log,
	)
	multiSigSvc := service.NewMultiSigService(
		walletRepo,
		approvalRepo,
		transactor,
		rail,
		eventPublisher,
		idempotencyCache,
		log,
	)

	// Background sweeper finalizes disputes whose deadline elapsed without
	// quorum.
	sweeper := service.NewDisputeSweeper(disputeSvc, cfg.Escrow.SweepInterval, log)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go sweeper.Run(sweepCtx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		EscrowSvc:      escrowSvc,
		DisputeSvc:     disputeSvc,
		MultiSigSvc:    multiSigSvc,
		TokenSvc:       tokenSvc,
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

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
