// internal/handlers/tenant/tenant_handler.go
package tenant

import (
	"errors"
	"net/http"

	domain "smartstrategy-service/internal/domain/tenant"
	"smartstrategy-service/internal/middleware"
	xerrors "smartstrategy-service/internal/pkg/errors"
	"smartstrategy-service/internal/pkg/response"
	"smartstrategy-service/internal/service/tenant"

	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	tenantService *tenant.Service
}

func NewTenantHandler(tenantService *tenant.Service) *TenantHandler {
	return &TenantHandler{
		tenantService: tenantService,
	}
}

// Create registers a tenant. Signup provisions the trial subscription.
func (h *TenantHandler) Create(c *gin.Context) {
	var req domain.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	t, err := h.tenantService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			response.Conflict(c, "email already registered", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}

	response.Success(c, http.StatusCreated, "tenant created", t)
}

// Me returns the authenticated tenant.
func (h *TenantHandler) Me(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	t, err := h.tenantService.Get(c.Request.Context(), tenantID)
	if err != nil {
		response.NotFound(c, "tenant not found")
		return
	}

	response.Success(c, http.StatusOK, "tenant retrieved", t)
}
