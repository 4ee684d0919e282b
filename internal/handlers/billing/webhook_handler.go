// internal/handlers/billing/webhook_handler.go
package billing

import (
	"errors"
	"io"
	"net/http"

	xerrors "smartstrategy-service/internal/pkg/errors"
	"smartstrategy-service/internal/pkg/response"
	"smartstrategy-service/internal/service/billing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	engine *billing.Engine
	logger *zap.Logger
}

func NewWebhookHandler(engine *billing.Engine, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		engine: engine,
		logger: logger,
	}
}

// Gateway receives payment gateway callbacks. Parseable payloads are always
// acknowledged with 2xx, including ones whose correlation fails, so the
// gateway does not retry deliveries that will never succeed. The raw payload
// is persisted before any processing.
func (h *WebhookHandler) Gateway(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "unreadable body", err)
		return
	}

	if err := h.engine.ProcessWebhook(c.Request.Context(), raw); err != nil {
		switch {
		case errors.Is(err, xerrors.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, "invalid webhook payload", err)
		case errors.Is(err, xerrors.ErrNotFound):
			// Event stored and marked failed; nothing to retry.
			h.logger.Warn("webhook correlation failed", zap.Error(err))
			response.Success(c, http.StatusOK, "event received", nil)
		default:
			response.Error(c, http.StatusInternalServerError, "webhook processing failed", err)
		}
		return
	}

	response.Success(c, http.StatusOK, "event processed", nil)
}
