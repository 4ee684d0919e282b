// internal/handlers/admin/admin_handler.go
package admin

import (
	"net/http"
	"strconv"

	domain "smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/middleware"
	"smartstrategy-service/internal/pkg/response"
	"smartstrategy-service/internal/service/billing"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the lifecycle overrides. Every route behind it runs
// after the admin-role middleware; the acting admin's principal id is taken
// from the verified token.
type AdminHandler struct {
	engine *billing.Engine
}

func NewAdminHandler(engine *billing.Engine) *AdminHandler {
	return &AdminHandler{
		engine: engine,
	}
}

// BlockTenant blocks a tenant's access (admin only)
func (h *AdminHandler) BlockTenant(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tenant ID", err)
		return
	}

	if err := h.engine.BlockTenant(c.Request.Context(), tenantID, middleware.MustGetTenantID(c)); err != nil {
		response.Error(c, http.StatusBadRequest, "failed to block tenant", err)
		return
	}

	response.Success(c, http.StatusOK, "tenant blocked", nil)
}

// UnblockTenant restores a tenant's access (admin only)
func (h *AdminHandler) UnblockTenant(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tenant ID", err)
		return
	}

	if err := h.engine.UnblockTenant(c.Request.Context(), tenantID, middleware.MustGetTenantID(c)); err != nil {
		response.Error(c, http.StatusBadRequest, "failed to unblock tenant", err)
		return
	}

	response.Success(c, http.StatusOK, "tenant unblocked", nil)
}

// ExpireSubscription force-expires a subscription (admin only)
func (h *AdminHandler) ExpireSubscription(c *gin.Context) {
	subID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	if err := h.engine.ForceExpire(c.Request.Context(), subID, middleware.MustGetTenantID(c)); err != nil {
		response.Error(c, http.StatusBadRequest, "failed to expire subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription expired", nil)
}

// ReactivateSubscription restarts an expired subscription on a fresh cycle
// (admin only)
func (h *AdminHandler) ReactivateSubscription(c *gin.Context) {
	subID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	if err := h.engine.Reactivate(c.Request.Context(), subID, middleware.MustGetTenantID(c)); err != nil {
		response.Error(c, http.StatusBadRequest, "failed to reactivate subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription reactivated", nil)
}

// AssignPlan grants a tenant a plan without payment (admin only)
func (h *AdminHandler) AssignPlan(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tenant ID", err)
		return
	}

	var req domain.AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sub, err := h.engine.AssignPlan(c.Request.Context(), tenantID, middleware.MustGetTenantID(c), req)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to assign plan", err)
		return
	}

	response.Success(c, http.StatusCreated, "plan assigned", sub)
}
