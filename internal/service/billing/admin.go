// internal/service/billing/admin.go
package billing

import (
	"context"
	"database/sql"
	"fmt"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/notification"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Administrative overrides. Every override writes a history entry carrying
// the acting admin id.

// BlockTenant turns the tenant's access off without touching subscriptions.
func (e *Engine) BlockTenant(ctx context.Context, tenantID, adminID int64) error {
	if err := e.tenants.SetActive(ctx, tenantID, false); err != nil {
		return err
	}
	e.appendAdminHistory(ctx, tenantID, adminID, billing.HistoryBlock, "Tenant blocked by administrator")
	e.notify(ctx, tenantID, notification.TypeBlock,
		"Account blocked",
		"Your account was blocked by an administrator.")
	e.invalidateGate(ctx, tenantID)
	return nil
}

// UnblockTenant restores access without altering subscription state.
func (e *Engine) UnblockTenant(ctx context.Context, tenantID, adminID int64) error {
	if err := e.tenants.SetActive(ctx, tenantID, true); err != nil {
		return err
	}
	e.appendAdminHistory(ctx, tenantID, adminID, billing.HistoryUnblock, "Tenant unblocked by administrator")
	e.notify(ctx, tenantID, notification.TypeUnblock,
		"Account restored",
		"Your account was unblocked by an administrator.")
	e.invalidateGate(ctx, tenantID)
	return nil
}

// ForceExpire expires a subscription immediately, regardless of its cycle end.
func (e *Engine) ForceExpire(ctx context.Context, subscriptionID, adminID int64) error {
	sub, err := e.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Expired {
		return fmt.Errorf("%w: subscription already expired", xerrors.ErrInvalidInput)
	}

	changed, err := e.subs.MarkExpired(ctx, sub.ID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if sub.GatewaySubscriptionID.Valid {
		if err := e.gateway.CancelSubscription(ctx, sub.GatewaySubscriptionID.String); err != nil {
			e.logger.Warn("failed to cancel gateway subscription on forced expiry",
				zap.String("gateway_id", sub.GatewaySubscriptionID.String), zap.Error(err))
		}
	}

	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryExpiration,
		Description:    "Expired by administrator",
		EndBefore:      sql.NullTime{Time: sub.End, Valid: true},
		AdminID:        sql.NullInt64{Int64: adminID, Valid: true},
	})
	e.notify(ctx, sub.TenantID, notification.TypeExpiration,
		"Subscription expired",
		"Your subscription was expired by an administrator.")
	e.blockTenantIfIdle(ctx, sub.TenantID)
	e.invalidateGate(ctx, sub.TenantID)
	return nil
}

// Reactivate restarts an expired subscription on a fresh cycle from today.
func (e *Engine) Reactivate(ctx context.Context, subscriptionID, adminID int64) error {
	sub, err := e.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if !sub.Expired {
		return fmt.Errorf("%w: subscription is not expired", xerrors.ErrInvalidInput)
	}
	p, err := e.plans.FindByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	now := e.now()
	if err := e.activateExclusive(ctx, sub, func(s *billing.Subscription) {
		s.Start = now
		s.End = addCycle(now, p.CycleDays)
	}); err != nil {
		return err
	}

	e.unblockTenant(ctx, sub.TenantID)
	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryReactivation,
		Description:    fmt.Sprintf("Reactivated on %s by administrator", p.Code),
		EndAfter:       sql.NullTime{Time: sub.End, Valid: true},
		AdminID:        sql.NullInt64{Int64: adminID, Valid: true},
	})
	e.notify(ctx, sub.TenantID, notification.TypeActivation,
		"Subscription reactivated",
		fmt.Sprintf("Your %s subscription is active again until %s.", p.Name, sub.End.Format("2006-01-02")))
	return nil
}

// AssignPlan grants a tenant a plan directly, bypassing payment. Used for
// comped accounts and manual corrections.
func (e *Engine) AssignPlan(ctx context.Context, tenantID, adminID int64, req billing.AssignPlanRequest) (*billing.Subscription, error) {
	p, err := e.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if p.IsTrial() {
		return nil, fmt.Errorf("%w: trial plan cannot be assigned", xerrors.ErrInvalidInput)
	}

	now := e.now()
	end := addCycle(now, p.CycleDays)
	if req.Days != nil {
		end = now.AddDate(0, 0, *req.Days)
	}

	sub := &billing.Subscription{
		TenantID:      tenantID,
		PlanID:        p.ID,
		Start:         now,
		End:           end,
		PaymentStatus: billing.PaymentConfirmed,
		Active:        true,
	}
	if req.Notes != "" {
		sub.Notes = sql.NullString{String: req.Notes, Valid: true}
	}
	if err := e.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create assigned subscription: %w", err)
	}
	if err := e.activateExclusive(ctx, sub, nil); err != nil {
		return nil, err
	}

	e.unblockTenant(ctx, tenantID)
	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       tenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryPlanChange,
		Description:    fmt.Sprintf("Plan %s assigned by administrator", p.Code),
		PlanAfter:      sql.NullString{String: p.Code, Valid: true},
		EndAfter:       sql.NullTime{Time: sub.End, Valid: true},
		AdminID:        sql.NullInt64{Int64: adminID, Valid: true},
	})
	e.notify(ctx, tenantID, notification.TypePlanChange,
		"Plan assigned",
		fmt.Sprintf("You are now on the %s plan until %s.", p.Name, sub.End.Format("2006-01-02")))
	return sub, nil
}

// RecomputePlanCycle cascades a plan's new cycle length onto every current
// subscription of that plan. Ends landing in the past expire immediately.
func (e *Engine) RecomputePlanCycle(ctx context.Context, planID int64, cycleDays int) error {
	subs, err := e.subs.ListCurrentByPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("list subscriptions for plan %d: %w", planID, err)
	}

	now := e.now()
	for i := range subs {
		s := &subs[i]
		endBefore := s.End
		newEnd := addCycle(s.Start, cycleDays)

		if !newEnd.After(now) {
			e.expireSubscription(ctx, s, "Cycle shortened past its end")
			continue
		}

		s.End = newEnd
		if err := e.subs.Update(ctx, s); err != nil {
			e.logger.Warn("failed to recompute subscription cycle",
				zap.Int64("subscription_id", s.ID), zap.Error(err))
			continue
		}
		e.appendHistory(ctx, &billing.PaymentHistoryEntry{
			TenantID:       s.TenantID,
			SubscriptionID: s.ID,
			Event:          billing.HistoryExtension,
			Description:    "Cycle end recomputed after plan update",
			EndBefore:      sql.NullTime{Time: endBefore, Valid: true},
			EndAfter:       sql.NullTime{Time: newEnd, Valid: true},
		})
		e.invalidateGate(ctx, s.TenantID)
	}
	return nil
}

// appendAdminHistory pins the admin action to the tenant's most relevant
// subscription; tenants with no subscriptions get no history row.
func (e *Engine) appendAdminHistory(ctx context.Context, tenantID, adminID int64, event billing.HistoryEvent, description string) {
	subs, err := e.subs.ListByTenant(ctx, tenantID)
	if err != nil || len(subs) == 0 {
		return
	}
	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       tenantID,
		SubscriptionID: subs[0].ID,
		Event:          event,
		Description:    description,
		AdminID:        sql.NullInt64{Int64: adminID, Valid: true},
	})
}
