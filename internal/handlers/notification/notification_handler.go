// internal/handlers/notification/notification_handler.go
package notification

import (
	"net/http"
	"strconv"

	"smartstrategy-service/internal/domain/notification"
	"smartstrategy-service/internal/middleware"
	"smartstrategy-service/internal/pkg/response"
	service "smartstrategy-service/internal/service/notification"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *service.Service
}

func NewNotificationHandler(notificationService *service.Service) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetNotifications retrieves paginated notifications for the current tenant
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	var filters notification.NotificationListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.notificationService.List(c.Request.Context(), tenantID, &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get notifications", err)
		return
	}

	response.Success(c, http.StatusOK, "notifications retrieved", result)
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	notifID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid notification ID", err)
		return
	}

	if err := h.notificationService.MarkAsRead(c.Request.Context(), notifID, tenantID); err != nil {
		response.Error(c, http.StatusNotFound, "notification not found", err)
		return
	}

	count, _ := h.notificationService.UnreadCount(c.Request.Context(), tenantID)

	response.Success(c, http.StatusOK, "notification marked as read", gin.H{
		"unread_count": count,
	})
}

// GetUnreadCount gets the count of unread notifications
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	count, err := h.notificationService.UnreadCount(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get unread count", err)
		return
	}

	response.Success(c, http.StatusOK, "unread count retrieved", gin.H{
		"unread_count": count,
	})
}
