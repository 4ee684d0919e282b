// internal/handlers/plan/plan_handler.go
package plan

import (
	"errors"
	"net/http"
	"strconv"

	domain "smartstrategy-service/internal/domain/plan"
	xerrors "smartstrategy-service/internal/pkg/errors"
	"smartstrategy-service/internal/pkg/response"
	"smartstrategy-service/internal/service/plan"

	"github.com/gin-gonic/gin"
)

type PlanHandler struct {
	planService *plan.Service
}

func NewPlanHandler(planService *plan.Service) *PlanHandler {
	return &PlanHandler{
		planService: planService,
	}
}

// ListPlans retrieves the active plan catalog
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.planService.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", plans)
}

// GetPlan retrieves a single plan by ID
func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	p, err := h.planService.Get(c.Request.Context(), planID)
	if err != nil {
		response.NotFound(c, "plan not found")
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", p)
}

// GetPlanByCode retrieves a plan by its code
func (h *PlanHandler) GetPlanByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		response.Error(c, http.StatusBadRequest, "plan code is required", nil)
		return
	}

	p, err := h.planService.GetByCode(c.Request.Context(), code)
	if err != nil {
		response.NotFound(c, "plan not found")
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", p)
}

// ========== Admin Only Endpoints ==========

// CreatePlan creates a new plan (admin only)
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req domain.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	p, err := h.planService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			response.Conflict(c, "plan code already exists", err)
			return
		}
		response.Error(c, http.StatusBadRequest, "failed to create plan", err)
		return
	}

	response.Success(c, http.StatusCreated, "plan created successfully", p)
}

// UpdatePlan updates a plan (admin only). Cycle changes cascade into
// current subscriptions.
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	var req domain.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	p, err := h.planService.Update(c.Request.Context(), planID, &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "plan not found")
			return
		}
		response.Error(c, http.StatusBadRequest, "failed to update plan", err)
		return
	}

	response.Success(c, http.StatusOK, "plan updated successfully", p)
}
