package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-billing/internal/config"
	"wallet-billing/internal/domain/ports/clock"
	"wallet-billing/internal/domain/ports/id"
	pg "wallet-billing/internal/infra/db/postgres"
	ops "wallet-billing/internal/infra/http"
	"wallet-billing/internal/infra/logging"
	"wallet-billing/internal/infra/metrics"
	red "wallet-billing/internal/infra/redis"
	"wallet-billing/internal/infra/sched"
	"wallet-billing/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	ids := id.NewRandom()
	clk := clock.System{}
	pocketRepo := pg.NewPocketRepo(pool, ids)
	txnRepo := pg.NewTransactionRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	couponRepo := pg.NewCouponRepoCacheDecorator(pg.NewCouponRepo(pool), redisClient)
	accountRepo := pg.NewAccountRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	// The wallet use case is consumed by the API services that sit in front
	// of this process; the app binary wires only what the worker needs.
	txnUC := usecase.NewTransactionUseCase(pocketRepo, txnRepo, tm, ids, clk, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, accountRepo, txnRepo, txnUC, tm, ids, clk, cfg.Billing.OrderExpiry, logger)
	cycle := time.Duration(cfg.Billing.DefaultCycleDays) * 24 * time.Hour
	subUC := usecase.NewSubscriptionUseCase(subRepo, couponRepo, orderUC, ids, clk, cycle, logger)
	orderUC.RegisterSettlementHandler(subUC)

	// ---- Renewal worker ----
	worker := sched.NewRenewalWorker(cfg.Scheduler.Interval, cfg.Scheduler.BatchSize, cfg.Scheduler.LockTTL,
		subRepo, accountRepo, subUC, orderUC, locker, clk, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Ops server ----
	server := ops.NewServer(cfg.HTTP.Port, pool, redisClient, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("ops server shutdown error")
	}
}
