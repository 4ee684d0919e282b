// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartstrategy-service/internal/domain/billing"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, tenant_id, plan_id, start_at, end_at,
	       gateway_subscription_id, gateway_customer_id,
	       payment_status, active, expired, notes, created_at, updated_at`

func scanSubscription(row pgx.Row) (*billing.Subscription, error) {
	var s billing.Subscription
	err := row.Scan(
		&s.ID, &s.TenantID, &s.PlanID, &s.Start, &s.End,
		&s.GatewaySubscriptionID, &s.GatewayCustomerID,
		&s.PaymentStatus, &s.Active, &s.Expired, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &s, nil
}

func (r *SubscriptionRepository) collect(rows pgx.Rows) ([]billing.Subscription, error) {
	defer rows.Close()
	subs := []billing.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, nil
}

// Create persists a new subscription row.
func (r *SubscriptionRepository) Create(ctx context.Context, s *billing.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			tenant_id, plan_id, start_at, end_at,
			gateway_subscription_id, gateway_customer_id,
			payment_status, active, expired, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		s.TenantID, s.PlanID, s.Start, s.End,
		s.GatewaySubscriptionID, s.GatewayCustomerID,
		s.PaymentStatus, s.Active, s.Expired, s.Notes,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// FindByID retrieves a subscription by ID.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*billing.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE id = $1`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, id))
}

// FindForUpdate retrieves a subscription inside a transaction with a row
// lock, so multi-step status transitions cannot lose updates.
func (r *SubscriptionRepository) FindForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*billing.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE id = $1 FOR UPDATE`, subscriptionColumns)
	return scanSubscription(tx.QueryRow(ctx, query, id))
}

// FindCurrentByTenant retrieves the tenant's active, unexpired
// subscription. Newest first: when transitions race, the most recently
// created row is authoritative.
func (r *SubscriptionRepository) FindCurrentByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE tenant_id = $1 AND active = TRUE AND expired = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID))
}

// FindNewestByGatewayID retrieves the most recent subscription linked to
// a gateway subscription id.
func (r *SubscriptionRepository) FindNewestByGatewayID(ctx context.Context, gatewayID string) (*billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE gateway_subscription_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, gatewayID))
}

// FindNewestPendingForPlan retrieves the most recent pending, inactive
// reservation for a tenant and plan.
func (r *SubscriptionRepository) FindNewestPendingForPlan(ctx context.Context, tenantID, planID int64) (*billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE tenant_id = $1 AND plan_id = $2 AND payment_status = $3 AND expired = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID, planID, billing.PaymentPending))
}

// FindNewestPendingByTenant retrieves the most recent pending, inactive
// subscription for a tenant regardless of plan.
func (r *SubscriptionRepository) FindNewestPendingByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE tenant_id = $1 AND payment_status = $2 AND active = FALSE AND expired = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID, billing.PaymentPending))
}

// ListPendingInactive retrieves pending reservations that never became
// active, oldest first.
func (r *SubscriptionRepository) ListPendingInactive(ctx context.Context, tenantID int64) ([]billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE tenant_id = $1 AND payment_status = $2 AND active = FALSE AND expired = FALSE
		ORDER BY created_at ASC
	`, subscriptionColumns)

	rows, err := r.db.Query(ctx, query, tenantID, billing.PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending subscriptions: %w", err)
	}
	return r.collect(rows)
}

// ListActiveByTenant retrieves every row still flagged active for a tenant.
func (r *SubscriptionRepository) ListActiveByTenant(ctx context.Context, tenantID int64) ([]billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE tenant_id = $1 AND active = TRUE AND expired = FALSE
		ORDER BY created_at DESC
	`, subscriptionColumns)

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	return r.collect(rows)
}

// ListByTenant retrieves all of a tenant's subscriptions, newest first.
func (r *SubscriptionRepository) ListByTenant(ctx context.Context, tenantID int64) ([]billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, subscriptionColumns)

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return r.collect(rows)
}

// ListCurrentByPlan retrieves unexpired subscriptions on a plan, for the
// cycle-length cascade.
func (r *SubscriptionRepository) ListCurrentByPlan(ctx context.Context, planID int64) ([]billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE plan_id = $1 AND expired = FALSE
		ORDER BY created_at ASC
	`, subscriptionColumns)

	rows, err := r.db.Query(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions by plan: %w", err)
	}
	return r.collect(rows)
}

// ListOverdue retrieves subscriptions whose cycle end has passed without
// being flagged expired. Used by the expiration sweep.
func (r *SubscriptionRepository) ListOverdue(ctx context.Context, now time.Time) ([]billing.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE end_at < $1 AND expired = FALSE
		ORDER BY end_at ASC
	`, subscriptionColumns)

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue subscriptions: %w", err)
	}
	return r.collect(rows)
}

// Update persists the mutable fields of a subscription.
func (r *SubscriptionRepository) Update(ctx context.Context, s *billing.Subscription) error {
	return r.update(ctx, r.db, s)
}

// UpdateWithTx persists the mutable fields within a transaction.
func (r *SubscriptionRepository) UpdateWithTx(ctx context.Context, tx pgx.Tx, s *billing.Subscription) error {
	return r.update(ctx, tx, s)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (r *SubscriptionRepository) update(ctx context.Context, q execer, s *billing.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $1, start_at = $2, end_at = $3,
		    gateway_subscription_id = $4, gateway_customer_id = $5,
		    payment_status = $6, active = $7, expired = $8, notes = $9, updated_at = $10
		WHERE id = $11
	`

	result, err := q.Exec(
		ctx, query,
		s.PlanID, s.Start, s.End,
		s.GatewaySubscriptionID, s.GatewayCustomerID,
		s.PaymentStatus, s.Active, s.Expired, s.Notes, time.Now(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// MarkExpired flags a subscription expired and inactive. Returns false if
// the row was already expired, making repeated expiry a no-op.
func (r *SubscriptionRepository) MarkExpired(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE subscriptions
		SET active = FALSE, expired = TRUE, updated_at = $1
		WHERE id = $2 AND expired = FALSE
	`

	result, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark subscription expired: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeactivateSiblingsWithTx force-deactivates every other subscription of
// the tenant still flagged active, converging on the single-active
// invariant after an activating transition.
func (r *SubscriptionRepository) DeactivateSiblingsWithTx(ctx context.Context, tx pgx.Tx, tenantID, keepID int64) (int64, error) {
	query := `
		UPDATE subscriptions
		SET active = FALSE, expired = TRUE, updated_at = $1
		WHERE tenant_id = $2 AND id <> $3 AND active = TRUE AND expired = FALSE
	`

	result, err := tx.Exec(ctx, query, time.Now(), tenantID, keepID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sibling subscriptions: %w", err)
	}
	return result.RowsAffected(), nil
}
