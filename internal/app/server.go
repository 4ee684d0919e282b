// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"smartstrategy-service/internal/config"
	"smartstrategy-service/internal/db"
	"smartstrategy-service/internal/gateway"
	adminHandler "smartstrategy-service/internal/handlers/admin"
	billingHandler "smartstrategy-service/internal/handlers/billing"
	notifyH "smartstrategy-service/internal/handlers/notification"
	planHandler "smartstrategy-service/internal/handlers/plan"
	tenantHandler "smartstrategy-service/internal/handlers/tenant"
	wsHandler "smartstrategy-service/internal/handlers/websocket"
	"smartstrategy-service/internal/middleware"
	"smartstrategy-service/internal/pkg/jwt"
	"smartstrategy-service/internal/repository/postgres"
	"smartstrategy-service/internal/service/access"
	billingUsecase "smartstrategy-service/internal/service/billing"
	notifyUsecase "smartstrategy-service/internal/service/notification"
	planUsecase "smartstrategy-service/internal/service/plan"
	tenantUsecase "smartstrategy-service/internal/service/tenant"
	"smartstrategy-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- PostgreSQL -----
	pool, err := postgres.Connect(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisCfg := db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	}
	redisClient, err := db.NewRedisClient(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Payment Gateway -----
	gatewayClient := gateway.NewHTTPClient(s.cfg.GatewayBaseURL, s.cfg.GatewayAPIKey, logger)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	planRepo := postgres.NewPlanRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	historyRepo := postgres.NewPaymentHistoryRepository(pool)
	webhookRepo := postgres.NewWebhookEventRepository(pool)
	notifyRepo := postgres.NewNotificationRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(verifier, logger)
	go hub.Run(ctx)

	// ----- Services (Usecases) -----
	notifService := notifyUsecase.NewService(notifyRepo, hub, logger)
	gate := access.NewGate(subscriptionRepo, planRepo, tenantRepo, redisClient, s.cfg.AccessCacheTTL, logger)
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
	planService := planUsecase.NewService(planRepo, lifecycle, gatewayClient, logger)
	tenantService := tenantUsecase.NewService(tenantRepo, lifecycle, logger)

	// Seed the reference catalog. A failure here is logged, not fatal: the
	// plans may already exist or be managed out of band.
	if err := planService.EnsureReferencePlans(ctx); err != nil {
		logger.Error("failed to seed reference plans", zap.Error(err))
	}

	// ----- Handlers -----
	billingHandlerInst := billingHandler.NewBillingHandler(lifecycle, gate)
	webhookHandlerInst := billingHandler.NewWebhookHandler(lifecycle, logger)
	planHandlerInst := planHandler.NewPlanHandler(planService)
	tenantHandlerInst := tenantHandler.NewTenantHandler(tenantService)
	adminHandlerInst := adminHandler.NewAdminHandler(lifecycle)
	notifHandlerInst := notifyH.NewNotificationHandler(notifService)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		BillingHandler: billingHandlerInst,
		WebhookHandler: webhookHandlerInst,
		PlanHandler:    planHandlerInst,
		TenantHandler:  tenantHandlerInst,
		AdminHandler:   adminHandlerInst,
		NotifHandler:   notifHandlerInst,
		WSHandler:      wsHandlerInst,
		AuthMiddleware: authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
