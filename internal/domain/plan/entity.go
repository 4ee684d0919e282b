// internal/domain/plan/entity.go
package plan

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Reference plan codes created by the bootstrap routine.
const (
	CodeTrial      = "TRIAL"
	CodePro        = "PRO"
	CodeEnterprise = "ENTERPRISE"
)

// Module flags gate access to platform features.
const (
	ModuleFinancial  = "financial"
	ModuleMarketing  = "marketing"
	ModuleInfluencer = "influencer"
	ModuleAnalytics  = "analytics"
)

type Plan struct {
	ID          int64          `json:"id" db:"id"`
	Code        string         `json:"code" db:"code"`
	Name        string         `json:"name" db:"name"`
	Description sql.NullString `json:"description,omitempty" db:"description"`

	// Pricing
	Price    float64 `json:"price" db:"price"`
	Currency string  `json:"currency" db:"currency"`

	// Billing cycle
	CycleDays int `json:"cycle_days" db:"cycle_days"`
	TrialDays int `json:"trial_days" db:"trial_days"`

	// Feature entitlements
	FinancialModule  bool `json:"financial_module" db:"financial_module"`
	MarketingModule  bool `json:"marketing_module" db:"marketing_module"`
	InfluencerModule bool `json:"influencer_module" db:"influencer_module"`
	AnalyticsModule  bool `json:"analytics_module" db:"analytics_module"`

	// Marketing copy
	Advantages    pq.StringArray `json:"advantages,omitempty" db:"advantages"`
	Disadvantages pq.StringArray `json:"disadvantages,omitempty" db:"disadvantages"`

	// Gateway linkage (remote "product" representation)
	GatewayProductID sql.NullString `json:"gateway_product_id,omitempty" db:"gateway_product_id"`

	Active bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Modules returns the set of module flags enabled on this plan.
func (p *Plan) Modules() []string {
	modules := []string{}
	if p.FinancialModule {
		modules = append(modules, ModuleFinancial)
	}
	if p.MarketingModule {
		modules = append(modules, ModuleMarketing)
	}
	if p.InfluencerModule {
		modules = append(modules, ModuleInfluencer)
	}
	if p.AnalyticsModule {
		modules = append(modules, ModuleAnalytics)
	}
	return modules
}

// IsTrial reports whether this is the free trial plan.
func (p *Plan) IsTrial() bool {
	return p.Code == CodeTrial
}
