// internal/domain/billing/entity.go
package billing

import (
	"database/sql"
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Subscription tracks one tenant's billing cycle and its linkage to the
// payment gateway. At most one subscription per tenant may be
// active && !expired at any time; the lifecycle engine converges on that
// invariant after every activating transition.
type Subscription struct {
	ID       int64 `json:"id" db:"id"`
	TenantID int64 `json:"tenant_id" db:"tenant_id"`
	PlanID   int64 `json:"plan_id" db:"plan_id"`

	// Cycle bounds. End is always strictly after Start.
	Start time.Time `json:"start" db:"start_at"`
	End   time.Time `json:"end" db:"end_at"`

	// Gateway linkage, null until the gateway confirms. Once set, the
	// subscription id is never reassigned to a different gateway object.
	GatewaySubscriptionID sql.NullString `json:"gateway_subscription_id,omitempty" db:"gateway_subscription_id"`
	GatewayCustomerID     sql.NullString `json:"gateway_customer_id,omitempty" db:"gateway_customer_id"`

	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	Active        bool          `json:"active" db:"active"`
	Expired       bool          `json:"expired" db:"expired"`

	Notes sql.NullString `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PastDue reports whether the cycle end has passed but the row has not
// been flagged expired yet.
func (s *Subscription) PastDue(now time.Time) bool {
	return !s.Expired && s.End.Before(now)
}

// DaysRemaining returns the whole days left in the current cycle,
// never negative.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if !s.End.After(now) {
		return 0
	}
	return int(s.End.Sub(now).Hours() / 24)
}

// Current reports whether the subscription currently grants access.
func (s *Subscription) Current() bool {
	return s.Active && !s.Expired
}
