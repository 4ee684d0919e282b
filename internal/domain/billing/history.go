// internal/domain/billing/history.go
package billing

import (
	"database/sql"
	"time"
)

type HistoryEvent string

const (
	HistoryCreation     HistoryEvent = "creation"
	HistoryActivation   HistoryEvent = "activation"
	HistoryExpiration   HistoryEvent = "expiration"
	HistoryReactivation HistoryEvent = "reactivation"
	HistoryPlanChange   HistoryEvent = "plan_change"
	HistoryExtension    HistoryEvent = "extension"
	HistoryBlock        HistoryEvent = "block"
	HistoryUnblock      HistoryEvent = "unblock"
	HistoryCancellation HistoryEvent = "cancellation"
)

// PaymentHistoryEntry is an append-only audit row. Entries are written
// best-effort: a failed write never rolls back the transition it records.
type PaymentHistoryEntry struct {
	ID             int64        `json:"id" db:"id"`
	SubscriptionID int64        `json:"subscription_id" db:"subscription_id"`
	TenantID       int64        `json:"tenant_id" db:"tenant_id"`
	Event          HistoryEvent `json:"event" db:"event"`
	Description    string       `json:"description" db:"description"`

	// Before/after snapshots
	PlanBefore  sql.NullString  `json:"plan_before,omitempty" db:"plan_before"`
	PlanAfter   sql.NullString  `json:"plan_after,omitempty" db:"plan_after"`
	EndBefore   sql.NullTime    `json:"end_before,omitempty" db:"end_before"`
	EndAfter    sql.NullTime    `json:"end_after,omitempty" db:"end_after"`
	PriceBefore sql.NullFloat64 `json:"price_before,omitempty" db:"price_before"`
	PriceAfter  sql.NullFloat64 `json:"price_after,omitempty" db:"price_after"`

	// Acting administrator, null for engine-driven transitions
	AdminID sql.NullInt64 `json:"admin_id,omitempty" db:"admin_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
