// internal/service/billing/change_plan.go
package billing

import (
	"context"
	"database/sql"
	"fmt"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/notification"
	"smartstrategy-service/internal/domain/plan"
	"smartstrategy-service/internal/gateway"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// ChangePlan simulates or executes a plan change for the tenant's current
// subscription. Without confirm it only returns the proration quote.
//
// Upgrades (prorata > 0) issue a one-off charge for the difference and park a
// PENDING subscription that activates when the payment webhook arrives.
// Downgrades and lateral moves swap immediately: the replacement gateway
// subscription is created synchronously and the old row is deactivated
// locally, its gateway-side cancellation deferred to the activation webhook.
func (e *Engine) ChangePlan(ctx context.Context, tenantID int64, req billing.ChangePlanRequest) (*billing.ChangePlanResult, error) {
	current, err := e.subs.FindCurrentByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: no active subscription to change", xerrors.ErrNotFound)
	}

	curPlan, err := e.plans.FindByID(ctx, current.PlanID)
	if err != nil {
		return nil, err
	}
	newPlan, err := e.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if newPlan.ID == curPlan.ID {
		return nil, fmt.Errorf("%w: already on plan %s", xerrors.ErrInvalidInput, newPlan.Code)
	}
	if !newPlan.Active || newPlan.IsTrial() {
		return nil, fmt.Errorf("%w: plan %s is not available", xerrors.ErrInvalidInput, newPlan.Code)
	}

	now := e.now()
	daysRemaining := current.DaysRemaining(now)
	prorata := Prorate(curPlan.Price, newPlan.Price, daysRemaining, curPlan.CycleDays)

	result := &billing.ChangePlanResult{
		CurrentPlan:   planSummary(curPlan),
		NewPlan:       planSummary(newPlan),
		DaysRemaining: daysRemaining,
		CycleDays:     curPlan.CycleDays,
		Prorata:       prorata,
	}
	if !req.Confirm {
		result.Simulated = true
		return result, nil
	}

	tn, err := e.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	customerID, err := e.ensureCustomer(ctx, tn)
	if err != nil {
		return nil, err
	}

	if prorata > 0 {
		// The charge's due date matches the cycle the payment buys: the
		// upgraded subscription keeps the current end date.
		charge, err := e.gateway.CreateCharge(ctx, gateway.ChargeRequest{
			CustomerID:        customerID,
			Value:             prorata,
			DueDate:           current.End,
			Description:       fmt.Sprintf("Upgrade to %s plan (prorated)", newPlan.Name),
			ExternalReference: billing.UpgradeReference(current.ID),
		})
		if err != nil {
			return nil, err
		}

		pending := &billing.Subscription{
			TenantID:          tenantID,
			PlanID:            newPlan.ID,
			Start:             now,
			End:               current.End,
			GatewayCustomerID: sql.NullString{String: customerID, Valid: true},
			PaymentStatus:     billing.PaymentPending,
			Active:            false,
		}
		if err := e.subs.Create(ctx, pending); err != nil {
			return nil, fmt.Errorf("create pending upgrade subscription: %w", err)
		}

		e.appendHistory(ctx, &billing.PaymentHistoryEntry{
			TenantID:       tenantID,
			SubscriptionID: pending.ID,
			Event:          billing.HistoryCreation,
			Description:    fmt.Sprintf("Upgrade to %s pending payment", newPlan.Code),
			PlanBefore:     sql.NullString{String: curPlan.Code, Valid: true},
			PlanAfter:      sql.NullString{String: newPlan.Code, Valid: true},
			PriceBefore:    sql.NullFloat64{Float64: curPlan.Price, Valid: true},
			PriceAfter:     sql.NullFloat64{Float64: newPlan.Price, Valid: true},
		})

		result.PaymentLink = charge.PaymentLink
		result.NewSubscriptionID = pending.ID
		return result, nil
	}

	// Free swap. The replacement recurring subscription is created on the
	// gateway before anything changes locally.
	gwID, err := e.gateway.CreateSubscription(ctx, gateway.SubscriptionRequest{
		CustomerID:  customerID,
		Value:       newPlan.Price,
		CycleDays:   newPlan.CycleDays,
		Description: fmt.Sprintf("SmartStrategy %s plan", newPlan.Name),
		NextDueDate: current.End,
	})
	if err != nil {
		return nil, err
	}

	replacement := &billing.Subscription{
		TenantID:              tenantID,
		PlanID:                newPlan.ID,
		Start:                 now,
		End:                   current.End,
		GatewaySubscriptionID: sql.NullString{String: gwID, Valid: true},
		GatewayCustomerID:     sql.NullString{String: customerID, Valid: true},
		PaymentStatus:         billing.PaymentConfirmed,
		Active:                true,
	}
	if err := e.subs.Create(ctx, replacement); err != nil {
		return nil, fmt.Errorf("create replacement subscription: %w", err)
	}

	// The old row is only deactivated, not expired or cancelled on the
	// gateway. Its gateway object is torn down once the replacement's
	// activation webhook lands.
	current.Active = false
	if err := e.subs.Update(ctx, current); err != nil {
		e.logger.Warn("failed to deactivate replaced subscription",
			zap.Int64("subscription_id", current.ID), zap.Error(err))
	}

	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       tenantID,
		SubscriptionID: replacement.ID,
		Event:          billing.HistoryPlanChange,
		Description:    fmt.Sprintf("Plan changed from %s to %s", curPlan.Code, newPlan.Code),
		PlanBefore:     sql.NullString{String: curPlan.Code, Valid: true},
		PlanAfter:      sql.NullString{String: newPlan.Code, Valid: true},
		EndBefore:      sql.NullTime{Time: current.End, Valid: true},
		EndAfter:       sql.NullTime{Time: replacement.End, Valid: true},
		PriceBefore:    sql.NullFloat64{Float64: curPlan.Price, Valid: true},
		PriceAfter:     sql.NullFloat64{Float64: newPlan.Price, Valid: true},
	})
	e.notify(ctx, tenantID, notification.TypePlanChange,
		"Plan changed",
		fmt.Sprintf("Your plan is now %s.", newPlan.Name))
	e.invalidateGate(ctx, tenantID)

	result.NewSubscriptionID = replacement.ID
	result.Activated = true
	return result, nil
}

func planSummary(p *plan.Plan) billing.PlanSummary {
	return billing.PlanSummary{ID: p.ID, Code: p.Code, Name: p.Name, Price: p.Price}
}
