// internal/service/billing/interfaces.go
package billing

import (
	"context"
	"time"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/notification"
	"smartstrategy-service/internal/domain/plan"
	"smartstrategy-service/internal/domain/tenant"

	"github.com/jackc/pgx/v5"
)

// Store interfaces consumed by the engine. Satisfied by the postgres
// repositories and by in-memory fakes in tests.

type SubscriptionStore interface {
	Create(ctx context.Context, s *billing.Subscription) error
	FindByID(ctx context.Context, id int64) (*billing.Subscription, error)
	FindForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*billing.Subscription, error)
	FindCurrentByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error)
	FindNewestByGatewayID(ctx context.Context, gatewayID string) (*billing.Subscription, error)
	FindNewestPendingByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error)
	FindNewestPendingForPlan(ctx context.Context, tenantID, planID int64) (*billing.Subscription, error)
	ListPendingInactive(ctx context.Context, tenantID int64) ([]billing.Subscription, error)
	ListActiveByTenant(ctx context.Context, tenantID int64) ([]billing.Subscription, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]billing.Subscription, error)
	ListCurrentByPlan(ctx context.Context, planID int64) ([]billing.Subscription, error)
	ListOverdue(ctx context.Context, now time.Time) ([]billing.Subscription, error)
	Update(ctx context.Context, s *billing.Subscription) error
	UpdateWithTx(ctx context.Context, tx pgx.Tx, s *billing.Subscription) error
	MarkExpired(ctx context.Context, id int64) (bool, error)
	DeactivateSiblingsWithTx(ctx context.Context, tx pgx.Tx, tenantID, keepID int64) (int64, error)
}

type PlanStore interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
	FindByCode(ctx context.Context, code string) (*plan.Plan, error)
}

type TenantStore interface {
	FindByID(ctx context.Context, id int64) (*tenant.Tenant, error)
	FindByGatewayCustomerID(ctx context.Context, customerID string) (*tenant.Tenant, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetGatewayCustomerID(ctx context.Context, id int64, customerID string) error
}

type HistoryStore interface {
	Append(ctx context.Context, e *billing.PaymentHistoryEntry) error
	ListByTenant(ctx context.Context, tenantID int64, limit int) ([]billing.PaymentHistoryEntry, error)
}

type WebhookStore interface {
	Insert(ctx context.Context, e *billing.WebhookEvent) error
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// Notifier delivers tenant-facing notifications. Failures are logged and
// never abort a transition.
type Notifier interface {
	Notify(ctx context.Context, tenantID int64, typ notification.NotificationType, title, message string) error
}

// GateInvalidator drops the access-gate cache entry for a tenant after a
// transition changes its subscription state.
type GateInvalidator interface {
	Invalidate(ctx context.Context, tenantID int64)
}
