// internal/repository/postgres/tenant_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartstrategy-service/internal/domain/tenant"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, email, active, gateway_customer_id, created_at, updated_at`

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Active, &t.GatewayCustomerID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	return &t, nil
}

// Create persists a new tenant. Email is unique; a duplicate surfaces as
// ErrDuplicateEntry.
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO tenants (name, email, active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, t.Name, t.Email, t.Active).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// FindByID retrieves a tenant by ID.
func (r *TenantRepository) FindByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1`, tenantColumns)
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

// FindByGatewayCustomerID retrieves the tenant linked to a gateway customer.
func (r *TenantRepository) FindByGatewayCustomerID(ctx context.Context, customerID string) (*tenant.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE gateway_customer_id = $1`, tenantColumns)
	return scanTenant(r.db.QueryRow(ctx, query, customerID))
}

// SetActive flips the denormalized access gate flag.
func (r *TenantRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE tenants SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set tenant active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// SetGatewayCustomerID stores the gateway customer linkage.
func (r *TenantRepository) SetGatewayCustomerID(ctx context.Context, id int64, customerID string) error {
	query := `UPDATE tenants SET gateway_customer_id = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, customerID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set gateway customer id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
