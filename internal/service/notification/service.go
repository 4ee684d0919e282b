// internal/service/notification/service.go
package notification

import (
	"context"
	"fmt"

	"smartstrategy-service/internal/domain/notification"
	ws "smartstrategy-service/internal/websocket"

	"go.uber.org/zap"
)

type Store interface {
	Create(ctx context.Context, n *notification.Notification) error
	ListByTenant(ctx context.Context, tenantID int64, filters *notification.NotificationListFilters) ([]notification.Notification, int64, error)
	MarkAsRead(ctx context.Context, id, tenantID int64) error
	GetUnreadCount(ctx context.Context, tenantID int64) (int64, error)
}

// Service persists billing notifications and pushes them to connected
// clients. It implements the lifecycle engine's Notifier.
type Service struct {
	store  Store
	hub    *ws.Hub
	logger *zap.Logger
}

func NewService(store Store, hub *ws.Hub, logger *zap.Logger) *Service {
	return &Service{store: store, hub: hub, logger: logger}
}

// Notify stores a notification and broadcasts it over the hub.
func (s *Service) Notify(ctx context.Context, tenantID int64, typ notification.NotificationType, title, message string) error {
	n := &notification.Notification{
		TenantID: tenantID,
		Title:    title,
		Message:  message,
		Type:     typ,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	s.push(n)
	return nil
}

// List returns a page of the tenant's notifications plus counters.
func (s *Service) List(ctx context.Context, tenantID int64, filters *notification.NotificationListFilters) (*notification.NotificationListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	notifications, total, err := s.store.ListByTenant(ctx, tenantID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread, err := s.store.GetUnreadCount(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return &notification.NotificationListResponse{
		Notifications: notifications,
		Total:         total,
		Unread:        unread,
		Page:          filters.Page,
		PageSize:      filters.PageSize,
	}, nil
}

// MarkAsRead flags one notification read and pushes the new unread count.
func (s *Service) MarkAsRead(ctx context.Context, id, tenantID int64) error {
	if err := s.store.MarkAsRead(ctx, id, tenantID); err != nil {
		return err
	}

	if s.hub != nil {
		count, err := s.store.GetUnreadCount(ctx, tenantID)
		if err != nil {
			s.logger.Warn("failed to get unread count",
				zap.Int64("tenant_id", tenantID), zap.Error(err))
		} else {
			s.hub.BroadcastUnreadCount(tenantID, count)
		}
	}
	return nil
}

func (s *Service) UnreadCount(ctx context.Context, tenantID int64) (int64, error) {
	return s.store.GetUnreadCount(ctx, tenantID)
}

func (s *Service) push(n *notification.Notification) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastNotification(n.TenantID, &ws.NotificationData{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	})
}
