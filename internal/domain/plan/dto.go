// internal/domain/plan/dto.go
package plan

type CreatePlanRequest struct {
	Code        string `json:"code" binding:"required,max=50"`
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`

	Price    float64 `json:"price" binding:"min=0"`
	Currency string  `json:"currency" binding:"required,len=3"`

	CycleDays int `json:"cycle_days" binding:"required,min=1"`
	TrialDays int `json:"trial_days" binding:"min=0"`

	FinancialModule  bool `json:"financial_module"`
	MarketingModule  bool `json:"marketing_module"`
	InfluencerModule bool `json:"influencer_module"`
	AnalyticsModule  bool `json:"analytics_module"`

	Advantages    []string `json:"advantages"`
	Disadvantages []string `json:"disadvantages"`
}

type UpdatePlanRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	Description *string `json:"description"`

	Price *float64 `json:"price" binding:"omitempty,min=0"`

	// Changing the cycle length cascades into every subscription
	// currently on the plan.
	CycleDays *int `json:"cycle_days" binding:"omitempty,min=1"`
	TrialDays *int `json:"trial_days" binding:"omitempty,min=0"`

	FinancialModule  *bool `json:"financial_module"`
	MarketingModule  *bool `json:"marketing_module"`
	InfluencerModule *bool `json:"influencer_module"`
	AnalyticsModule  *bool `json:"analytics_module"`

	Advantages    []string `json:"advantages"`
	Disadvantages []string `json:"disadvantages"`

	Active *bool `json:"active"`
}
