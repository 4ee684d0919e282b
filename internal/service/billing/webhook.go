// internal/service/billing/webhook.go
package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/notification"
	"smartstrategy-service/internal/gateway"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// ProcessWebhook persists the raw gateway payload, then applies the event to
// local state. The stored event is marked processed or failed afterwards;
// correlation failures surface as ErrNotFound so the transport layer can
// still acknowledge the delivery.
func (e *Engine) ProcessWebhook(ctx context.Context, raw []byte) error {
	var payload billing.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: undecodable webhook payload: %v", xerrors.ErrInvalidInput, err)
	}
	if payload.Event == "" {
		return fmt.Errorf("%w: webhook payload missing event name", xerrors.ErrInvalidInput)
	}

	event := &billing.WebhookEvent{
		ID:                ulid.Make().String(),
		Event:             payload.Event,
		GatewayObjectID:   payload.ObjectID(),
		ExternalReference: payload.Reference(),
		Payload:           raw,
		Status:            billing.WebhookReceived,
	}
	if err := e.webhooks.Insert(ctx, event); err != nil {
		return fmt.Errorf("persist webhook event: %w", err)
	}

	if err := e.applyEvent(ctx, &payload); err != nil {
		if merr := e.webhooks.MarkFailed(ctx, event.ID, err); merr != nil {
			e.logger.Warn("failed to mark webhook event failed",
				zap.String("event_id", event.ID), zap.Error(merr))
		}
		return err
	}

	if err := e.webhooks.MarkProcessed(ctx, event.ID); err != nil {
		e.logger.Warn("failed to mark webhook event processed",
			zap.String("event_id", event.ID), zap.Error(err))
	}
	return nil
}

func (e *Engine) applyEvent(ctx context.Context, p *billing.WebhookPayload) error {
	switch p.Event {
	case billing.EventPaymentReceived, billing.EventPaymentConfirmed:
		return e.handlePaymentConfirmed(ctx, p)
	case billing.EventPaymentOverdue:
		return e.handlePaymentOverdue(ctx, p)
	case billing.EventPaymentDeleted:
		return e.handlePaymentDeleted(ctx, p)
	case billing.EventSubscriptionActivated:
		return e.handleSubscriptionActivated(ctx, p)
	case billing.EventSubscriptionCancelled, billing.EventSubscriptionDeleted, billing.EventSubscriptionInactivated:
		return e.handleSubscriptionTerminated(ctx, p)
	case billing.EventSubscriptionCreated:
		return e.handleSubscriptionCreated(ctx, p)
	case billing.EventSubscriptionUpdated:
		e.logger.Info("gateway subscription updated", zap.String("gateway_id", p.ObjectID()))
		return nil
	default:
		e.logger.Info("ignoring unhandled webhook event", zap.String("event", p.Event))
		return nil
	}
}

// handlePaymentConfirmed routes a confirmed payment to the local row it
// belongs to via the external reference.
func (e *Engine) handlePaymentConfirmed(ctx context.Context, p *billing.WebhookPayload) error {
	ref, err := billing.ParseReference(p.Reference())
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	switch ref.Kind {
	case billing.ReferenceUpgrade:
		return e.activateUpgrade(ctx, ref.SubscriptionID)
	case billing.ReferenceReservation:
		return e.activateReservation(ctx, ref.TenantID, ref.PlanID)
	default:
		return e.applyDirectPayment(ctx, ref.GatewaySubscriptionID)
	}
}

// activateUpgrade confirms the pending upgrade row, retires the superseded
// subscription and tears down its gateway object.
func (e *Engine) activateUpgrade(ctx context.Context, oldSubscriptionID int64) error {
	old, err := e.subs.FindByID(ctx, oldSubscriptionID)
	if err != nil {
		return fmt.Errorf("upgrade reference subscription %d: %w", oldSubscriptionID, err)
	}
	pending, err := e.subs.FindNewestPendingByTenant(ctx, old.TenantID)
	if err != nil {
		return fmt.Errorf("pending upgrade for tenant %d: %w", old.TenantID, err)
	}
	oldPlan, err := e.plans.FindByID(ctx, old.PlanID)
	if err != nil {
		return err
	}
	newPlan, err := e.plans.FindByID(ctx, pending.PlanID)
	if err != nil {
		return err
	}

	gwID := e.createDeferredGatewaySubscription(ctx, pending, newPlan.Price, newPlan.CycleDays, newPlan.Name)

	if err := e.activateExclusive(ctx, pending, func(s *billing.Subscription) {
		if gwID != "" {
			s.GatewaySubscriptionID = sql.NullString{String: gwID, Valid: true}
		}
	}); err != nil {
		return err
	}

	// The superseded row was already retired by the sibling sweep; its
	// gateway object is safe to cancel now that payment confirmed.
	if old.GatewaySubscriptionID.Valid {
		if err := e.gateway.CancelSubscription(ctx, old.GatewaySubscriptionID.String); err != nil {
			e.logger.Warn("failed to cancel superseded gateway subscription",
				zap.String("gateway_id", old.GatewaySubscriptionID.String), zap.Error(err))
		}
	}

	e.unblockTenant(ctx, pending.TenantID)
	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       pending.TenantID,
		SubscriptionID: pending.ID,
		Event:          billing.HistoryActivation,
		Description:    fmt.Sprintf("Upgrade to %s activated", newPlan.Code),
		PlanBefore:     sql.NullString{String: oldPlan.Code, Valid: true},
		PlanAfter:      sql.NullString{String: newPlan.Code, Valid: true},
		PriceBefore:    sql.NullFloat64{Float64: oldPlan.Price, Valid: true},
		PriceAfter:     sql.NullFloat64{Float64: newPlan.Price, Valid: true},
		EndAfter:       sql.NullTime{Time: pending.End, Valid: true},
	})
	e.notify(ctx, pending.TenantID, notification.TypePlanChange,
		"Upgrade complete",
		fmt.Sprintf("Your subscription was upgraded to %s.", newPlan.Name))
	return nil
}

// activateReservation confirms a trial-to-paid reservation.
func (e *Engine) activateReservation(ctx context.Context, tenantID, planID int64) error {
	pending, err := e.subs.FindNewestPendingForPlan(ctx, tenantID, planID)
	if err != nil {
		return fmt.Errorf("pending reservation tenant=%d plan=%d: %w", tenantID, planID, err)
	}
	p, err := e.plans.FindByID(ctx, pending.PlanID)
	if err != nil {
		return err
	}

	gwID := e.createDeferredGatewaySubscription(ctx, pending, p.Price, p.CycleDays, p.Name)

	if err := e.activateExclusive(ctx, pending, func(s *billing.Subscription) {
		if gwID != "" {
			s.GatewaySubscriptionID = sql.NullString{String: gwID, Valid: true}
		}
	}); err != nil {
		return err
	}

	e.unblockTenant(ctx, tenantID)
	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       tenantID,
		SubscriptionID: pending.ID,
		Event:          billing.HistoryActivation,
		Description:    fmt.Sprintf("Subscription to %s activated", p.Code),
		PlanAfter:      sql.NullString{String: p.Code, Valid: true},
		PriceAfter:     sql.NullFloat64{Float64: p.Price, Valid: true},
		EndAfter:       sql.NullTime{Time: pending.End, Valid: true},
	})
	e.notify(ctx, tenantID, notification.TypeActivation,
		"Subscription active",
		fmt.Sprintf("Your %s subscription is now active until %s.", p.Name, pending.End.Format("2006-01-02")))
	return nil
}

// applyDirectPayment handles a recurring payment on an existing gateway
// subscription: first activation, renewal extension or post-expiry restart.
func (e *Engine) applyDirectPayment(ctx context.Context, gatewayID string) error {
	sub, err := e.subs.FindNewestByGatewayID(ctx, gatewayID)
	if err != nil {
		return fmt.Errorf("subscription for gateway id %s: %w", gatewayID, err)
	}
	p, err := e.plans.FindByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	now := e.now()
	var event billing.HistoryEvent
	endBefore := sub.End

	if err := e.activateExclusive(ctx, sub, func(s *billing.Subscription) {
		switch {
		case s.Expired:
			// Payment after expiry restarts a fresh cycle from today.
			s.Start = now
			s.End = addCycle(now, p.CycleDays)
			event = billing.HistoryReactivation
		case s.Active:
			// Renewal extends the running cycle.
			s.End = addCycle(s.End, p.CycleDays)
			event = billing.HistoryExtension
		default:
			// First activation keeps the end computed at checkout.
			event = billing.HistoryActivation
		}
	}); err != nil {
		return err
	}

	e.unblockTenant(ctx, sub.TenantID)
	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Event:          event,
		Description:    fmt.Sprintf("Payment confirmed for %s", p.Code),
		EndBefore:      sql.NullTime{Time: endBefore, Valid: true},
		EndAfter:       sql.NullTime{Time: sub.End, Valid: true},
		PriceAfter:     sql.NullFloat64{Float64: p.Price, Valid: true},
	})
	e.notify(ctx, sub.TenantID, notification.TypeActivation,
		"Payment received",
		fmt.Sprintf("Your %s subscription runs until %s.", p.Name, sub.End.Format("2006-01-02")))
	return nil
}

// createDeferredGatewaySubscription creates the recurring gateway object
// only after the first payment confirmed. Failure does not abort the local
// activation; the payment already happened.
func (e *Engine) createDeferredGatewaySubscription(ctx context.Context, pending *billing.Subscription, price float64, cycleDays int, planName string) string {
	if !pending.GatewayCustomerID.Valid {
		return ""
	}
	gwID, err := e.gateway.CreateSubscription(ctx, gateway.SubscriptionRequest{
		CustomerID:  pending.GatewayCustomerID.String,
		Value:       price,
		CycleDays:   cycleDays,
		Description: fmt.Sprintf("SmartStrategy %s plan", planName),
		NextDueDate: pending.End,
	})
	if err != nil {
		e.logger.Warn("failed to create gateway subscription after payment",
			zap.Int64("subscription_id", pending.ID), zap.Error(err))
		return ""
	}
	return gwID
}

func (e *Engine) handlePaymentOverdue(ctx context.Context, p *billing.WebhookPayload) error {
	ref, err := billing.ParseReference(p.Reference())
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	var sub *billing.Subscription
	switch ref.Kind {
	case billing.ReferenceUpgrade:
		sub, err = e.subs.FindByID(ctx, ref.SubscriptionID)
	case billing.ReferenceReservation:
		sub, err = e.subs.FindNewestPendingForPlan(ctx, ref.TenantID, ref.PlanID)
	default:
		sub, err = e.subs.FindNewestByGatewayID(ctx, ref.GatewaySubscriptionID)
	}
	if err != nil {
		return fmt.Errorf("overdue payment correlation: %w", err)
	}

	sub.PaymentStatus = billing.PaymentOverdue
	if err := e.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("mark subscription overdue: %w", err)
	}
	e.logger.Info("subscription payment overdue",
		zap.Int64("subscription_id", sub.ID), zap.Int64("tenant_id", sub.TenantID))
	return nil
}

// handlePaymentDeleted cancels the local pending row whose charge was
// deleted on the gateway. Payments on recurring subscriptions are left to
// the subscription-level events.
func (e *Engine) handlePaymentDeleted(ctx context.Context, p *billing.WebhookPayload) error {
	ref, err := billing.ParseReference(p.Reference())
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	var sub *billing.Subscription
	switch ref.Kind {
	case billing.ReferenceUpgrade:
		old, ferr := e.subs.FindByID(ctx, ref.SubscriptionID)
		if ferr != nil {
			return fmt.Errorf("deleted payment correlation: %w", ferr)
		}
		sub, err = e.subs.FindNewestPendingByTenant(ctx, old.TenantID)
	case billing.ReferenceReservation:
		sub, err = e.subs.FindNewestPendingForPlan(ctx, ref.TenantID, ref.PlanID)
	default:
		e.logger.Info("ignoring deleted payment on recurring subscription",
			zap.String("gateway_id", ref.GatewaySubscriptionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleted payment correlation: %w", err)
	}
	if sub.Current() {
		return nil
	}

	sub.PaymentStatus = billing.PaymentCancelled
	sub.Active = false
	sub.Expired = true
	if err := e.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("cancel pending subscription: %w", err)
	}
	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryCancellation,
		Description:    "Pending payment deleted on gateway",
	})
	return nil
}

// handleSubscriptionActivated aligns local state when the gateway activates
// a recurring subscription, and finishes the deferred teardown of any
// replaced siblings.
func (e *Engine) handleSubscriptionActivated(ctx context.Context, p *billing.WebhookPayload) error {
	gatewayID := p.ObjectID()
	sub, err := e.subs.FindNewestByGatewayID(ctx, gatewayID)
	if err != nil {
		return fmt.Errorf("subscription for gateway id %s: %w", gatewayID, err)
	}

	// Siblings with their own gateway objects are cancelled remotely once
	// the replacement is confirmed active. A plan swap leaves the replaced
	// row deactivated but not expired, so the scan covers every unexpired
	// row, not just active ones.
	var supersededGatewayIDs []string
	if all, lerr := e.subs.ListByTenant(ctx, sub.TenantID); lerr == nil {
		for _, s := range all {
			if s.ID == sub.ID || s.Expired || !s.GatewaySubscriptionID.Valid {
				continue
			}
			if s.GatewaySubscriptionID.String == gatewayID {
				continue
			}
			supersededGatewayIDs = append(supersededGatewayIDs, s.GatewaySubscriptionID.String)
		}
	}

	if err := e.activateExclusive(ctx, sub, nil); err != nil {
		return err
	}

	for _, id := range supersededGatewayIDs {
		if err := e.gateway.CancelSubscription(ctx, id); err != nil {
			e.logger.Warn("failed to cancel superseded gateway subscription",
				zap.String("gateway_id", id), zap.Error(err))
		}
	}

	e.unblockTenant(ctx, sub.TenantID)
	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryActivation,
		Description:    "Gateway subscription activated",
		EndAfter:       sql.NullTime{Time: sub.End, Valid: true},
	})
	return nil
}

// handleSubscriptionTerminated expires the local row for a gateway-side
// cancellation and blocks the tenant when nothing active remains.
func (e *Engine) handleSubscriptionTerminated(ctx context.Context, p *billing.WebhookPayload) error {
	gatewayID := p.ObjectID()
	sub, err := e.subs.FindNewestByGatewayID(ctx, gatewayID)
	if err != nil {
		return fmt.Errorf("subscription for gateway id %s: %w", gatewayID, err)
	}
	if sub.Expired && !sub.Active {
		return nil
	}

	sub.PaymentStatus = billing.PaymentCancelled
	sub.Active = false
	sub.Expired = true
	if err := e.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("expire cancelled subscription: %w", err)
	}

	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryCancellation,
		Description:    fmt.Sprintf("Gateway event %s", p.Event),
	})
	e.notify(ctx, sub.TenantID, notification.TypeExpiration,
		"Subscription cancelled",
		"Your subscription was cancelled by the payment provider.")
	e.blockTenantIfIdle(ctx, sub.TenantID)
	return nil
}

// handleSubscriptionCreated is informational, with one side effect: if the
// gateway reports an active subscription for a blocked tenant, the tenant is
// unblocked.
func (e *Engine) handleSubscriptionCreated(ctx context.Context, p *billing.WebhookPayload) error {
	if p.Subscription == nil || p.Subscription.Customer == "" {
		return nil
	}
	tn, err := e.tenants.FindByGatewayCustomerID(ctx, p.Subscription.Customer)
	if err != nil {
		e.logger.Info("subscription created for unknown gateway customer",
			zap.String("customer_id", p.Subscription.Customer))
		return nil
	}
	if tn.Active {
		return nil
	}

	remotes, err := e.gateway.ListCustomerSubscriptions(ctx, p.Subscription.Customer)
	if err != nil {
		e.logger.Warn("failed to list gateway subscriptions",
			zap.String("customer_id", p.Subscription.Customer), zap.Error(err))
		return nil
	}
	for _, r := range remotes {
		if gateway.IsRemoteActive(r.Status) {
			e.unblockTenant(ctx, tn.ID)
			return nil
		}
	}
	return nil
}
