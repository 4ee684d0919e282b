// cmd/sweeper/main.go
//
// Sweeper is the scheduled expiry job. It scans for subscriptions whose
// billing cycle has lapsed and expires them, so that access is revoked even
// for tenants that never hit the API between cycles. Safe to run alongside
// the on-read checks in the API process: expiry is idempotent.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartstrategy-service/internal/config"
	"smartstrategy-service/internal/db"
	"smartstrategy-service/internal/gateway"
	"smartstrategy-service/internal/repository/postgres"
	"smartstrategy-service/internal/service/access"
	billingUsecase "smartstrategy-service/internal/service/billing"
	notifyUsecase "smartstrategy-service/internal/service/notification"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	runOnce := flag.Bool("run-once", false, "run a single sweep and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("[SWEEPER] No .env file found, relying on system env vars")
	}
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
		PoolSize: 5,
	})
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	gatewayClient := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, logger)

	dbWrapper := postgres.NewDB(pool)
	planRepo := postgres.NewPlanRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	historyRepo := postgres.NewPaymentHistoryRepository(pool)
	webhookRepo := postgres.NewWebhookEventRepository(pool)
	notifyRepo := postgres.NewNotificationRepository(pool)

	// No hub here: notifications are persisted and picked up by the API
	// process's websocket clients on their next fetch.
	notifService := notifyUsecase.NewService(notifyRepo, nil, logger)
	gate := access.NewGate(subscriptionRepo, planRepo, tenantRepo, redisClient, cfg.AccessCacheTTL, logger)

	lifecycle := billingUsecase.NewEngine(
		subscriptionRepo,
		planRepo,
		tenantRepo,
		historyRepo,
		webhookRepo,
		gatewayClient,
		dbWrapper,
		notifService,
		gate,
		logger,
	)

	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		expired, err := lifecycle.ExpireOverdue(sweepCtx)
		if err != nil {
			logger.Error("sweep failed", zap.Error(err))
			return
		}
		logger.Info("sweep finished", zap.Int("expired", expired))
	}

	if *runOnce {
		sweep()
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, sweep); err != nil {
		logger.Fatal("invalid sweep schedule",
			zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
	}
	scheduler.Start()
	logger.Info("sweeper running", zap.String("schedule", cfg.SweepSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("sweeper stopped")
}
