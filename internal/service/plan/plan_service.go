// internal/service/plan/plan_service.go
package plan

import (
	"context"
	"database/sql"
	"fmt"

	"smartstrategy-service/internal/domain/plan"
	"smartstrategy-service/internal/gateway"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type Store interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
	FindByCode(ctx context.Context, code string) (*plan.Plan, error)
	ListActive(ctx context.Context) ([]plan.Plan, error)
	Upsert(ctx context.Context, p *plan.Plan) error
	Update(ctx context.Context, p *plan.Plan) error
	SetGatewayProductID(ctx context.Context, id int64, productID string) error
}

// CycleRecomputer cascades a changed cycle length onto live subscriptions.
type CycleRecomputer interface {
	RecomputePlanCycle(ctx context.Context, planID int64, cycleDays int) error
}

type Service struct {
	plans   Store
	engine  CycleRecomputer
	gateway gateway.Client
	logger  *zap.Logger
}

func NewService(plans Store, engine CycleRecomputer, gw gateway.Client, logger *zap.Logger) *Service {
	return &Service{plans: plans, engine: engine, gateway: gw, logger: logger}
}

func (s *Service) Get(ctx context.Context, id int64) (*plan.Plan, error) {
	return s.plans.FindByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*plan.Plan, error) {
	return s.plans.FindByCode(ctx, code)
}

func (s *Service) ListActive(ctx context.Context) ([]plan.Plan, error) {
	return s.plans.ListActive(ctx)
}

// EnsureReferencePlans upserts the built-in TRIAL/PRO/ENTERPRISE plans at
// startup. Upsert-by-code keeps operator edits to prices intact across
// restarts only for columns the bootstrap does not own.
func (s *Service) EnsureReferencePlans(ctx context.Context) error {
	for _, p := range referencePlans() {
		ref := p
		if err := s.plans.Upsert(ctx, &ref); err != nil {
			return fmt.Errorf("ensure plan %s: %w", ref.Code, err)
		}
		s.syncGatewayProduct(ctx, &ref)
	}
	return nil
}

// Create adds a new plan to the catalog.
func (s *Service) Create(ctx context.Context, req *plan.CreatePlanRequest) (*plan.Plan, error) {
	if _, err := s.plans.FindByCode(ctx, req.Code); err == nil {
		return nil, fmt.Errorf("%w: plan code %s", xerrors.ErrDuplicateEntry, req.Code)
	}

	p := &plan.Plan{
		Code:             req.Code,
		Name:             req.Name,
		Price:            req.Price,
		Currency:         req.Currency,
		CycleDays:        req.CycleDays,
		TrialDays:        req.TrialDays,
		FinancialModule:  req.FinancialModule,
		MarketingModule:  req.MarketingModule,
		InfluencerModule: req.InfluencerModule,
		AnalyticsModule:  req.AnalyticsModule,
		Advantages:       req.Advantages,
		Disadvantages:    req.Disadvantages,
		Active:           true,
	}
	if req.Description != "" {
		p.Description = sql.NullString{String: req.Description, Valid: true}
	}
	if err := s.plans.Upsert(ctx, p); err != nil {
		return nil, err
	}
	s.syncGatewayProduct(ctx, p)
	return p, nil
}

// Update edits a plan. A changed cycle length cascades over every current
// subscription of the plan; price/name edits sync the gateway product.
func (s *Service) Update(ctx context.Context, id int64, req *plan.UpdatePlanRequest) (*plan.Plan, error) {
	p, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cycleChanged := false
	priceOrNameChanged := false

	if req.Name != nil && *req.Name != p.Name {
		p.Name = *req.Name
		priceOrNameChanged = true
	}
	if req.Description != nil {
		p.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.Price != nil && *req.Price != p.Price {
		p.Price = *req.Price
		priceOrNameChanged = true
	}
	if req.CycleDays != nil && *req.CycleDays != p.CycleDays {
		p.CycleDays = *req.CycleDays
		cycleChanged = true
	}
	if req.TrialDays != nil {
		p.TrialDays = *req.TrialDays
	}
	if req.FinancialModule != nil {
		p.FinancialModule = *req.FinancialModule
	}
	if req.MarketingModule != nil {
		p.MarketingModule = *req.MarketingModule
	}
	if req.InfluencerModule != nil {
		p.InfluencerModule = *req.InfluencerModule
	}
	if req.AnalyticsModule != nil {
		p.AnalyticsModule = *req.AnalyticsModule
	}
	if req.Advantages != nil {
		p.Advantages = req.Advantages
	}
	if req.Disadvantages != nil {
		p.Disadvantages = req.Disadvantages
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}

	if cycleChanged {
		if err := s.engine.RecomputePlanCycle(ctx, p.ID, p.CycleDays); err != nil {
			s.logger.Warn("failed to cascade cycle change",
				zap.Int64("plan_id", p.ID), zap.Error(err))
		}
	}
	if priceOrNameChanged {
		s.syncGatewayProduct(ctx, p)
	}
	return p, nil
}

// syncGatewayProduct mirrors the plan onto the gateway product catalog.
// Failures are logged; the local catalog is the source of truth.
func (s *Service) syncGatewayProduct(ctx context.Context, p *plan.Plan) {
	if p.IsTrial() {
		return
	}
	productID, err := s.gateway.EnsureProduct(ctx, p.GatewayProductID.String, gateway.ProductRequest{
		Name:  p.Name,
		Price: p.Price,
	})
	if err != nil {
		s.logger.Warn("failed to sync gateway product",
			zap.String("plan_code", p.Code), zap.Error(err))
		return
	}
	if productID != "" && productID != p.GatewayProductID.String {
		if err := s.plans.SetGatewayProductID(ctx, p.ID, productID); err != nil {
			s.logger.Warn("failed to store gateway product id",
				zap.String("plan_code", p.Code), zap.Error(err))
			return
		}
		p.GatewayProductID = sql.NullString{String: productID, Valid: true}
	}
}

func referencePlans() []plan.Plan {
	return []plan.Plan{
		{
			Code:             plan.CodeTrial,
			Name:             "Trial",
			Description:      sql.NullString{String: "Full access for evaluation", Valid: true},
			Price:            0,
			Currency:         "BRL",
			CycleDays:        7,
			TrialDays:        7,
			FinancialModule:  true,
			MarketingModule:  true,
			InfluencerModule: true,
			AnalyticsModule:  true,
			Advantages:       []string{"All modules unlocked", "No payment required"},
			Disadvantages:    []string{"Expires after 7 days"},
			Active:           true,
		},
		{
			Code:            plan.CodePro,
			Name:            "Pro",
			Description:     sql.NullString{String: "Financial and marketing tooling for growing teams", Valid: true},
			Price:           149.90,
			Currency:        "BRL",
			CycleDays:       30,
			FinancialModule: true,
			MarketingModule: true,
			Advantages:      []string{"Financial module", "Marketing module"},
			Disadvantages:   []string{"No influencer campaigns", "No analytics"},
			Active:          true,
		},
		{
			Code:             plan.CodeEnterprise,
			Name:             "Enterprise",
			Description:      sql.NullString{String: "Every module, monthly cycle", Valid: true},
			Price:            399.90,
			Currency:         "BRL",
			CycleDays:        30,
			FinancialModule:  true,
			MarketingModule:  true,
			InfluencerModule: true,
			AnalyticsModule:  true,
			Advantages:       []string{"All modules", "Priority support"},
			Active:           true,
		},
	}
}
