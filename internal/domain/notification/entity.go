// internal/domain/notification/entity.go
package notification

import (
	"database/sql"
	"time"
)

type NotificationType string

const (
	TypeActivation NotificationType = "activation"
	TypeExpiration NotificationType = "expiration"
	TypeBlock      NotificationType = "block"
	TypeUnblock    NotificationType = "unblock"
	TypePlanChange NotificationType = "plan_change"
)

type Notification struct {
	ID       int64            `json:"id" db:"id"`
	TenantID int64            `json:"tenant_id" db:"tenant_id"`
	Title    string           `json:"title" db:"title"`
	Message  string           `json:"message" db:"message"`
	Type     NotificationType `json:"type" db:"type"`
	IsRead   bool             `json:"is_read" db:"is_read"`

	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	ReadAt    sql.NullTime `json:"read_at,omitempty" db:"read_at"`
}

type NotificationListFilters struct {
	IsRead   *bool             `form:"is_read"`
	Type     *NotificationType `form:"type"`
	Page     int               `form:"page" binding:"min=1"`
	PageSize int               `form:"page_size" binding:"min=1,max=100"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	Total         int64          `json:"total"`
	Unread        int64          `json:"unread"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
}
