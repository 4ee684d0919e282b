// internal/service/tenant/tenant_service.go
package tenant

import (
	"context"
	"fmt"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/tenant"

	"go.uber.org/zap"
)

type Store interface {
	Create(ctx context.Context, t *tenant.Tenant) error
	FindByID(ctx context.Context, id int64) (*tenant.Tenant, error)
}

// TrialCreator provisions the signup trial subscription.
type TrialCreator interface {
	CreateTrial(ctx context.Context, tenantID int64) (*billing.Subscription, error)
}

type Service struct {
	tenants Store
	billing TrialCreator
	logger  *zap.Logger
}

func NewService(tenants Store, billing TrialCreator, logger *zap.Logger) *Service {
	return &Service{tenants: tenants, billing: billing, logger: logger}
}

// Create registers a tenant and provisions its trial subscription. Trial
// creation is an explicit call here, never a database trigger, so the
// lifecycle engine is the only writer of subscription rows.
func (s *Service) Create(ctx context.Context, req *tenant.CreateTenantRequest) (*tenant.Tenant, error) {
	t := &tenant.Tenant{
		Name:   req.Name,
		Email:  req.Email,
		Active: true,
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		return nil, err
	}

	if _, err := s.billing.CreateTrial(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("provision trial for tenant %d: %w", t.ID, err)
	}

	s.logger.Info("tenant created with trial", zap.Int64("tenant_id", t.ID))
	return t, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*tenant.Tenant, error) {
	return s.tenants.FindByID(ctx, id)
}
