// internal/service/billing/reconcile.go
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/notification"
	"smartstrategy-service/internal/gateway"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// CurrentSubscription returns the tenant's current subscription after
// reconciling local state against the calendar and the gateway. Past-due
// rows are expired on read; when the gateway reports no active subscription
// for the tenant's customer, gateway-linked local rows are force-cancelled.
// Gateway outages degrade to local state.
func (e *Engine) CurrentSubscription(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	sub, err := e.subs.FindCurrentByTenant(ctx, tenantID)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	now := e.now()
	if sub != nil && sub.PastDue(now) {
		e.expireSubscription(ctx, sub, "Cycle ended")
		sub = nil
	}

	e.reconcileWithGateway(ctx, tenantID)

	fresh, err := e.subs.FindCurrentByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: no current subscription", xerrors.ErrNotFound)
	}
	return fresh, nil
}

// expireSubscription flags the row expired, tears down its gateway object
// and blocks the tenant if nothing active remains. Expiry is idempotent;
// the return reports whether this call flipped the flag.
func (e *Engine) expireSubscription(ctx context.Context, sub *billing.Subscription, reason string) bool {
	changed, err := e.subs.MarkExpired(ctx, sub.ID)
	if err != nil {
		e.logger.Warn("failed to expire subscription",
			zap.Int64("subscription_id", sub.ID), zap.Error(err))
		return false
	}
	if !changed {
		return false
	}

	if sub.GatewaySubscriptionID.Valid {
		if err := e.gateway.CancelSubscription(ctx, sub.GatewaySubscriptionID.String); err != nil {
			e.logger.Warn("failed to cancel gateway subscription on expiry",
				zap.String("gateway_id", sub.GatewaySubscriptionID.String), zap.Error(err))
		}
	}

	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryExpiration,
		Description:    reason,
		EndBefore:      sql.NullTime{Time: sub.End, Valid: true},
	})
	e.notify(ctx, sub.TenantID, notification.TypeExpiration,
		"Subscription expired",
		"Your subscription cycle has ended. Renew to keep access.")
	e.blockTenantIfIdle(ctx, sub.TenantID)
	e.invalidateGate(ctx, sub.TenantID)
	return true
}

// reconcileWithGateway aligns local rows with the gateway's view of the
// tenant's customer. Only rows linked to a gateway subscription are ever
// force-cancelled; trials and pending reservations are purely local.
func (e *Engine) reconcileWithGateway(ctx context.Context, tenantID int64) {
	tn, err := e.tenants.FindByID(ctx, tenantID)
	if err != nil || !tn.GatewayCustomerID.Valid {
		return
	}

	remotes, err := e.gateway.ListCustomerSubscriptions(ctx, tn.GatewayCustomerID.String)
	if err != nil {
		e.logger.Warn("gateway reconciliation skipped",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
		return
	}

	activeRemote := make(map[string]bool, len(remotes))
	for _, r := range remotes {
		if gateway.IsRemoteActive(r.Status) {
			activeRemote[r.ID] = true
		}
	}

	locals, err := e.subs.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		e.logger.Warn("failed to list active subscriptions for reconciliation",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
		return
	}

	cancelled := false
	for i := range locals {
		s := &locals[i]
		if !s.GatewaySubscriptionID.Valid || activeRemote[s.GatewaySubscriptionID.String] {
			continue
		}
		// The gateway no longer considers this subscription active.
		s.PaymentStatus = billing.PaymentCancelled
		s.Active = false
		s.Expired = true
		if err := e.subs.Update(ctx, s); err != nil {
			e.logger.Warn("failed to force-cancel subscription during reconciliation",
				zap.Int64("subscription_id", s.ID), zap.Error(err))
			continue
		}
		cancelled = true
		e.appendHistory(ctx, &billing.PaymentHistoryEntry{
			TenantID:       tenantID,
			SubscriptionID: s.ID,
			Event:          billing.HistoryCancellation,
			Description:    "Gateway reports subscription no longer active",
		})
	}
	if cancelled {
		e.blockTenantIfIdle(ctx, tenantID)
		e.invalidateGate(ctx, tenantID)
	}

	e.adoptRemoteActive(ctx, tenantID, activeRemote)
}

// adoptRemoteActive covers the opposite drift: the gateway holds an active
// subscription whose local row is dormant. The newest matching local row is
// re-activated.
func (e *Engine) adoptRemoteActive(ctx context.Context, tenantID int64, activeRemote map[string]bool) {
	if len(activeRemote) == 0 {
		return
	}
	if _, err := e.subs.FindCurrentByTenant(ctx, tenantID); err == nil {
		return
	}

	all, err := e.subs.ListByTenant(ctx, tenantID)
	if err != nil {
		return
	}
	for i := range all {
		s := &all[i]
		if !s.GatewaySubscriptionID.Valid || !activeRemote[s.GatewaySubscriptionID.String] {
			continue
		}
		if err := e.activateExclusive(ctx, s, nil); err != nil {
			e.logger.Warn("failed to realign subscription with gateway",
				zap.Int64("subscription_id", s.ID), zap.Error(err))
			return
		}
		e.unblockTenant(ctx, tenantID)
		e.appendHistory(ctx, &billing.PaymentHistoryEntry{
			TenantID:       tenantID,
			SubscriptionID: s.ID,
			Event:          billing.HistoryActivation,
			Description:    "Realigned with active gateway subscription",
		})
		return
	}
}
