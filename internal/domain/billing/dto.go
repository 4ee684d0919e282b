// internal/domain/billing/dto.go
package billing

import "time"

type CheckoutRequest struct {
	PlanID int64 `json:"plan_id" binding:"required,min=1"`
}

type CheckoutResult struct {
	SubscriptionID int64     `json:"subscription_id"`
	PaymentLink    string    `json:"payment_link"`
	DueDate        time.Time `json:"due_date"`
	Value          float64   `json:"value"`
}

type ChangePlanRequest struct {
	PlanID  int64 `json:"plan_id" binding:"required,min=1"`
	Confirm bool  `json:"confirm"`
}

type PlanSummary struct {
	ID    int64   `json:"id"`
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type ChangePlanResult struct {
	CurrentPlan   PlanSummary `json:"current_plan"`
	NewPlan       PlanSummary `json:"new_plan"`
	DaysRemaining int         `json:"days_remaining"`
	CycleDays     int         `json:"cycle_days"`
	Prorata       float64     `json:"prorata"`
	Simulated     bool        `json:"simulated"`

	// Set on confirm only
	PaymentLink       string `json:"payment_link,omitempty"`
	NewSubscriptionID int64  `json:"new_subscription_id,omitempty"`
	Activated         bool   `json:"activated"`
}

type AssignPlanRequest struct {
	PlanID int64   `json:"plan_id" binding:"required,min=1"`
	Notes  string  `json:"notes"`
	Days   *int    `json:"days" binding:"omitempty,min=1"`
	Price  float64 `json:"-"`
}

// AccessInfo is the TenantGate read model.
type AccessInfo struct {
	Active  bool     `json:"active"`
	Modules []string `json:"modules"`
}
