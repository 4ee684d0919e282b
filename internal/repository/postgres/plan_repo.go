// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartstrategy-service/internal/domain/plan"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, code, name, description, price, currency, cycle_days, trial_days,
	       financial_module, marketing_module, influencer_module, analytics_module,
	       advantages, disadvantages, gateway_product_id, active, created_at, updated_at`

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &p.Price, &p.Currency, &p.CycleDays, &p.TrialDays,
		&p.FinancialModule, &p.MarketingModule, &p.InfluencerModule, &p.AnalyticsModule,
		pq.Array(&p.Advantages), pq.Array(&p.Disadvantages), &p.GatewayProductID, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	return &p, nil
}

// FindByID retrieves a plan by ID.
func (r *PlanRepository) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = $1`, planColumns)
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

// FindByCode retrieves a plan by its unique code.
func (r *PlanRepository) FindByCode(ctx context.Context, code string) (*plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE code = $1`, planColumns)
	return scanPlan(r.db.QueryRow(ctx, query, code))
}

// ListActive retrieves active plans ordered by name.
func (r *PlanRepository) ListActive(ctx context.Context) ([]plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE active = TRUE ORDER BY name ASC`, planColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []plan.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, nil
}

// Upsert creates or updates a plan keyed by code. Used by the bootstrap
// routine for the reference plans; idempotent.
func (r *PlanRepository) Upsert(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (
			code, name, description, price, currency, cycle_days, trial_days,
			financial_module, marketing_module, influencer_module, analytics_module,
			advantages, disadvantages, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    price = EXCLUDED.price, currency = EXCLUDED.currency,
		    cycle_days = EXCLUDED.cycle_days, trial_days = EXCLUDED.trial_days,
		    financial_module = EXCLUDED.financial_module, marketing_module = EXCLUDED.marketing_module,
		    influencer_module = EXCLUDED.influencer_module, analytics_module = EXCLUDED.analytics_module,
		    advantages = EXCLUDED.advantages, disadvantages = EXCLUDED.disadvantages,
		    active = EXCLUDED.active, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.Code, p.Name, p.Description, p.Price, p.Currency, p.CycleDays, p.TrialDays,
		p.FinancialModule, p.MarketingModule, p.InfluencerModule, p.AnalyticsModule,
		pq.Array(p.Advantages), pq.Array(p.Disadvantages), p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}

// Update persists administrator edits to a plan.
func (r *PlanRepository) Update(ctx context.Context, p *plan.Plan) error {
	query := `
		UPDATE plans
		SET name = $1, description = $2, price = $3, cycle_days = $4, trial_days = $5,
		    financial_module = $6, marketing_module = $7, influencer_module = $8, analytics_module = $9,
		    advantages = $10, disadvantages = $11, active = $12, updated_at = $13
		WHERE id = $14
	`

	result, err := r.db.Exec(
		ctx, query,
		p.Name, p.Description, p.Price, p.CycleDays, p.TrialDays,
		p.FinancialModule, p.MarketingModule, p.InfluencerModule, p.AnalyticsModule,
		pq.Array(p.Advantages), pq.Array(p.Disadvantages), p.Active, time.Now(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// SetGatewayProductID stores the gateway-side product id for a plan.
func (r *PlanRepository) SetGatewayProductID(ctx context.Context, id int64, productID string) error {
	query := `UPDATE plans SET gateway_product_id = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, productID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set gateway product id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
