// internal/handlers/billing/billing_handler.go
package billing

import (
	"errors"
	"net/http"

	domain "smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/gateway"
	"smartstrategy-service/internal/middleware"
	xerrors "smartstrategy-service/internal/pkg/errors"
	"smartstrategy-service/internal/pkg/response"
	"smartstrategy-service/internal/service/access"
	"smartstrategy-service/internal/service/billing"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	engine *billing.Engine
	gate   *access.Gate
}

func NewBillingHandler(engine *billing.Engine, gate *access.Gate) *BillingHandler {
	return &BillingHandler{
		engine: engine,
		gate:   gate,
	}
}

// GetSubscription returns the tenant's current subscription. The read
// reconciles local state against the calendar and the gateway.
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	sub, err := h.engine.CurrentSubscription(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "no active subscription")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", sub)
}

// ListSubscriptions returns the tenant's full subscription history.
func (h *BillingHandler) ListSubscriptions(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	subs, err := h.engine.Subscriptions(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list subscriptions", err)
		return
	}

	response.Success(c, http.StatusOK, "subscriptions retrieved", subs)
}

// Checkout starts a paid subscription and returns the payment link.
func (h *BillingHandler) Checkout(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.engine.Checkout(c.Request.Context(), tenantID, req.PlanID)
	if err != nil {
		respondEngineError(c, err, "checkout failed")
		return
	}

	response.Success(c, http.StatusCreated, "checkout created", result)
}

// ChangePlan simulates or executes a plan change.
func (h *BillingHandler) ChangePlan(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	var req domain.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.engine.ChangePlan(c.Request.Context(), tenantID, req)
	if err != nil {
		respondEngineError(c, err, "plan change failed")
		return
	}

	response.Success(c, http.StatusOK, "plan change processed", result)
}

// History returns the tenant's payment history entries, newest first.
func (h *BillingHandler) History(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	entries, err := h.engine.History(c.Request.Context(), tenantID, 100)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load payment history", err)
		return
	}

	response.Success(c, http.StatusOK, "payment history retrieved", entries)
}

// Access returns the TenantGate result for the caller.
func (h *BillingHandler) Access(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	info, err := h.gate.Access(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to resolve access", err)
		return
	}

	response.Success(c, http.StatusOK, "access resolved", info)
}

// respondEngineError maps engine errors onto HTTP statuses.
func respondEngineError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, message, err)
	case errors.Is(err, xerrors.ErrDuplicateEntry):
		response.Conflict(c, message, err)
	case errors.Is(err, gateway.ErrUnavailable):
		response.BadGateway(c, "payment gateway unavailable", err)
	default:
		response.Error(c, http.StatusInternalServerError, message, err)
	}
}
