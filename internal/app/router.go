// internal/app/router.go
package app

import (
	adminHandler "smartstrategy-service/internal/handlers/admin"
	billingHandler "smartstrategy-service/internal/handlers/billing"
	notifyHandler "smartstrategy-service/internal/handlers/notification"
	planHandler "smartstrategy-service/internal/handlers/plan"
	tenantHandler "smartstrategy-service/internal/handlers/tenant"
	wsHandler "smartstrategy-service/internal/handlers/websocket"
	"smartstrategy-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	BillingHandler *billingHandler.BillingHandler
	WebhookHandler *billingHandler.WebhookHandler
	PlanHandler    *planHandler.PlanHandler
	TenantHandler  *tenantHandler.TenantHandler
	AdminHandler   *adminHandler.AdminHandler
	NotifHandler   *notifyHandler.NotificationHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws/notifications", h.WSHandler.HandleConnection)

	// ==================== Plan Catalog ====================
	plans := api.Group("/plans")
	{
		plans.GET("", h.PlanHandler.ListPlans)
		plans.GET("/:id", h.PlanHandler.GetPlan)
		plans.GET("/code/:code", h.PlanHandler.GetPlanByCode)
	}

	// ==================== Tenants ====================
	// Registration is public; it provisions the tenant and its trial.
	api.POST("/tenants", h.TenantHandler.Create)

	tenants := api.Group("/tenants")
	tenants.Use(h.AuthMiddleware.Auth())
	{
		tenants.GET("/me", h.TenantHandler.Me)
	}

	// ==================== Billing ====================
	billing := api.Group("/billing")
	billing.Use(h.AuthMiddleware.Auth())
	{
		billing.GET("/subscription", h.BillingHandler.GetSubscription)
		billing.GET("/subscriptions", h.BillingHandler.ListSubscriptions)
		billing.POST("/checkout", h.BillingHandler.Checkout)
		billing.POST("/change-plan", h.BillingHandler.ChangePlan)
		billing.GET("/history", h.BillingHandler.History)
		billing.GET("/access", h.BillingHandler.Access)
	}

	// ==================== Gateway Webhooks ====================
	// The gateway posts here without a bearer token. Events are
	// persisted before processing.
	api.POST("/webhooks/gateway", h.WebhookHandler.Gateway)

	// ==================== Notifications ====================
	notifications := api.Group("/notifications")
	notifications.Use(h.AuthMiddleware.Auth())
	{
		notifications.GET("", h.NotifHandler.GetNotifications)
		notifications.GET("/unread-count", h.NotifHandler.GetUnreadCount)
		notifications.PUT("/:id/read", h.NotifHandler.MarkAsRead)
	}

	// ==================== ADMIN ROUTES ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		adminPlans := admin.Group("/plans")
		{
			adminPlans.POST("", h.PlanHandler.CreatePlan)
			adminPlans.PUT("/:id", h.PlanHandler.UpdatePlan)
		}

		adminTenants := admin.Group("/tenants")
		{
			adminTenants.PUT("/:id/block", h.AdminHandler.BlockTenant)
			adminTenants.PUT("/:id/unblock", h.AdminHandler.UnblockTenant)
			adminTenants.POST("/:id/assign-plan", h.AdminHandler.AssignPlan)
		}

		adminSubscriptions := admin.Group("/subscriptions")
		{
			adminSubscriptions.PUT("/:id/expire", h.AdminHandler.ExpireSubscription)
			adminSubscriptions.POST("/:id/reactivate", h.AdminHandler.ReactivateSubscription)
		}
	}
}
