// internal/repository/postgres/payment_history_repo.go
package postgres

import (
	"context"
	"fmt"

	"smartstrategy-service/internal/domain/billing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentHistoryRepository is append-only; rows are never updated or
// deleted.
type PaymentHistoryRepository struct {
	db *pgxpool.Pool
}

func NewPaymentHistoryRepository(db *pgxpool.Pool) *PaymentHistoryRepository {
	return &PaymentHistoryRepository{db: db}
}

// Append writes one audit entry.
func (r *PaymentHistoryRepository) Append(ctx context.Context, e *billing.PaymentHistoryEntry) error {
	query := `
		INSERT INTO payment_history (
			subscription_id, tenant_id, event, description,
			plan_before, plan_after, end_before, end_after,
			price_before, price_after, admin_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		e.SubscriptionID, e.TenantID, e.Event, e.Description,
		e.PlanBefore, e.PlanAfter, e.EndBefore, e.EndAfter,
		e.PriceBefore, e.PriceAfter, e.AdminID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append payment history: %w", err)
	}
	return nil
}

// ListByTenant retrieves a tenant's audit trail, newest first.
func (r *PaymentHistoryRepository) ListByTenant(ctx context.Context, tenantID int64, limit int) ([]billing.PaymentHistoryEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, subscription_id, tenant_id, event, description,
		       plan_before, plan_after, end_before, end_after,
		       price_before, price_after, admin_id, created_at
		FROM payment_history
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment history: %w", err)
	}
	defer rows.Close()

	entries := []billing.PaymentHistoryEntry{}
	for rows.Next() {
		var e billing.PaymentHistoryEntry
		err := rows.Scan(
			&e.ID, &e.SubscriptionID, &e.TenantID, &e.Event, &e.Description,
			&e.PlanBefore, &e.PlanAfter, &e.EndBefore, &e.EndAfter,
			&e.PriceBefore, &e.PriceAfter, &e.AdminID, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CountBySubscription returns the number of entries recorded for a
// subscription and event type.
func (r *PaymentHistoryRepository) CountBySubscription(ctx context.Context, subscriptionID int64, event billing.HistoryEvent) (int64, error) {
	query := `SELECT COUNT(*) FROM payment_history WHERE subscription_id = $1 AND event = $2`

	var count int64
	if err := r.db.QueryRow(ctx, query, subscriptionID, event).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payment history: %w", err)
	}
	return count, nil
}
