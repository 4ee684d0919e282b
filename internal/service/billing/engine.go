// internal/service/billing/engine.go
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/notification"
	"smartstrategy-service/internal/domain/plan"
	"smartstrategy-service/internal/domain/tenant"
	"smartstrategy-service/internal/gateway"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Engine drives every subscription status transition. All writes that touch
// the single-active invariant go through a row-locked transaction; side
// effects (history, notifications, cache invalidation) run after commit and
// never roll a transition back.
type Engine struct {
	subs     SubscriptionStore
	plans    PlanStore
	tenants  TenantStore
	history  HistoryStore
	webhooks WebhookStore
	gateway  gateway.Client
	db       TxBeginner
	notifier Notifier
	gate     GateInvalidator
	logger   *zap.Logger
	now      func() time.Time
}

func NewEngine(
	subs SubscriptionStore,
	plans PlanStore,
	tenants TenantStore,
	history HistoryStore,
	webhooks WebhookStore,
	gw gateway.Client,
	db TxBeginner,
	notifier Notifier,
	gate GateInvalidator,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		subs:     subs,
		plans:    plans,
		tenants:  tenants,
		history:  history,
		webhooks: webhooks,
		gateway:  gw,
		db:       db,
		notifier: notifier,
		gate:     gate,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateTrial provisions the trial subscription for a freshly created tenant.
// The trial is born active and confirmed with no gateway linkage.
func (e *Engine) CreateTrial(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	trial, err := e.plans.FindByCode(ctx, plan.CodeTrial)
	if err != nil {
		return nil, fmt.Errorf("trial plan lookup: %w", err)
	}

	now := e.now()
	sub := &billing.Subscription{
		TenantID:      tenantID,
		PlanID:        trial.ID,
		Start:         now,
		End:           now.AddDate(0, 0, trial.TrialDays),
		PaymentStatus: billing.PaymentConfirmed,
		Active:        true,
		Expired:       false,
	}
	if err := e.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create trial subscription: %w", err)
	}
	if err := e.tenants.SetActive(ctx, tenantID, true); err != nil {
		e.logger.Warn("failed to activate tenant after trial creation",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
	}

	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       tenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryCreation,
		Description:    fmt.Sprintf("Trial subscription created (%d days)", trial.TrialDays),
		PlanAfter:      sql.NullString{String: trial.Code, Valid: true},
		EndAfter:       sql.NullTime{Time: sub.End, Valid: true},
	})
	e.notify(ctx, tenantID, notification.TypeActivation,
		"Welcome to SmartStrategy",
		fmt.Sprintf("Your %d-day trial is active until %s.", trial.TrialDays, sub.End.Format("2006-01-02")))
	e.invalidateGate(ctx, tenantID)

	return sub, nil
}

// Checkout prepares a paid subscription: it cancels stale pending rows,
// ensures the gateway customer, issues a one-off charge tagged with a
// reservation reference and records a PENDING inactive subscription. The
// gateway subscription itself is only created once the payment confirms.
func (e *Engine) Checkout(ctx context.Context, tenantID, planID int64) (*billing.CheckoutResult, error) {
	tn, err := e.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	p, err := e.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: plan %s is not available", xerrors.ErrInvalidInput, p.Code)
	}
	if p.IsTrial() {
		return nil, fmt.Errorf("%w: trial plan cannot be purchased", xerrors.ErrInvalidInput)
	}

	e.cancelStalePending(ctx, tenantID)

	customerID, err := e.ensureCustomer(ctx, tn)
	if err != nil {
		return nil, err
	}

	now := e.now()
	dueDate := addCycle(now, p.CycleDays)

	// Renewing the same plan carries the unspent days of the current cycle
	// into the new one.
	if current, cerr := e.subs.FindCurrentByTenant(ctx, tenantID); cerr == nil {
		if current.PlanID == p.ID {
			if remaining := current.DaysRemaining(now); remaining > 0 {
				dueDate = dueDate.AddDate(0, 0, remaining)
			}
		}
	}

	charge, err := e.gateway.CreateCharge(ctx, gateway.ChargeRequest{
		CustomerID:        customerID,
		Value:             p.Price,
		DueDate:           dueDate,
		Description:       fmt.Sprintf("SmartStrategy %s plan", p.Name),
		ExternalReference: billing.ReservationReference(tenantID, p.ID),
	})
	if err != nil {
		return nil, err
	}

	sub := &billing.Subscription{
		TenantID:          tenantID,
		PlanID:            p.ID,
		Start:             now,
		End:               dueDate,
		GatewayCustomerID: sql.NullString{String: customerID, Valid: true},
		PaymentStatus:     billing.PaymentPending,
		Active:            false,
		Expired:           false,
	}
	if err := e.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create pending subscription: %w", err)
	}

	e.appendHistory(ctx, &billing.PaymentHistoryEntry{
		TenantID:       tenantID,
		SubscriptionID: sub.ID,
		Event:          billing.HistoryCreation,
		Description:    fmt.Sprintf("Checkout started for plan %s", p.Code),
		PlanAfter:      sql.NullString{String: p.Code, Valid: true},
		EndAfter:       sql.NullTime{Time: sub.End, Valid: true},
		PriceAfter:     sql.NullFloat64{Float64: p.Price, Valid: true},
	})

	return &billing.CheckoutResult{
		SubscriptionID: sub.ID,
		PaymentLink:    charge.PaymentLink,
		DueDate:        dueDate,
		Value:          p.Price,
	}, nil
}

// cancelStalePending cancels, locally only, every pending inactive
// subscription the tenant abandoned before paying.
func (e *Engine) cancelStalePending(ctx context.Context, tenantID int64) {
	stale, err := e.subs.ListPendingInactive(ctx, tenantID)
	if err != nil {
		e.logger.Warn("failed to list stale pending subscriptions",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
		return
	}
	for i := range stale {
		s := &stale[i]
		s.PaymentStatus = billing.PaymentCancelled
		s.Active = false
		s.Expired = true
		if err := e.subs.Update(ctx, s); err != nil {
			e.logger.Warn("failed to cancel stale pending subscription",
				zap.Int64("subscription_id", s.ID), zap.Error(err))
			continue
		}
		e.appendHistory(ctx, &billing.PaymentHistoryEntry{
			TenantID:       tenantID,
			SubscriptionID: s.ID,
			Event:          billing.HistoryCancellation,
			Description:    "Abandoned checkout cancelled",
		})
	}
}

// ensureCustomer returns the gateway customer id for the tenant, creating it
// on first use.
func (e *Engine) ensureCustomer(ctx context.Context, tn *tenant.Tenant) (string, error) {
	if tn.GatewayCustomerID.Valid && tn.GatewayCustomerID.String != "" {
		return tn.GatewayCustomerID.String, nil
	}
	customerID, err := e.gateway.CreateCustomer(ctx, gateway.CustomerRequest{
		Name:              tn.Name,
		Email:             tn.Email,
		ExternalReference: fmt.Sprintf("%d", tn.ID),
	})
	if err != nil {
		return "", err
	}
	if err := e.tenants.SetGatewayCustomerID(ctx, tn.ID, customerID); err != nil {
		return "", fmt.Errorf("persist gateway customer id: %w", err)
	}
	tn.GatewayCustomerID = sql.NullString{String: customerID, Valid: true}
	return customerID, nil
}

// activateExclusive applies mutate to the locked subscription row, marks it
// confirmed and active and retires every sibling in the same transaction.
func (e *Engine) activateExclusive(ctx context.Context, sub *billing.Subscription, mutate func(*billing.Subscription)) error {
	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := e.subs.FindForUpdate(ctx, tx, sub.ID)
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(locked)
	}
	locked.PaymentStatus = billing.PaymentConfirmed
	locked.Active = true
	locked.Expired = false

	if err := e.subs.UpdateWithTx(ctx, tx, locked); err != nil {
		return err
	}
	if _, err := e.subs.DeactivateSiblingsWithTx(ctx, tx, locked.TenantID, locked.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit activation: %w", err)
	}
	*sub = *locked
	return nil
}

func (e *Engine) unblockTenant(ctx context.Context, tenantID int64) {
	if err := e.tenants.SetActive(ctx, tenantID, true); err != nil {
		e.logger.Warn("failed to unblock tenant",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
	e.invalidateGate(ctx, tenantID)
}

// blockTenantIfIdle blocks the tenant when it has no active subscription left.
func (e *Engine) blockTenantIfIdle(ctx context.Context, tenantID int64) {
	remaining, err := e.subs.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		e.logger.Warn("failed to list active subscriptions before block",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
		return
	}
	if len(remaining) > 0 {
		return
	}
	if err := e.tenants.SetActive(ctx, tenantID, false); err != nil {
		e.logger.Warn("failed to block tenant",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
		return
	}
	e.notify(ctx, tenantID, notification.TypeBlock,
		"Account blocked",
		"Your account was blocked because no active subscription remains. Renew to restore access.")
	e.invalidateGate(ctx, tenantID)
}

func (e *Engine) appendHistory(ctx context.Context, entry *billing.PaymentHistoryEntry) {
	if err := e.history.Append(ctx, entry); err != nil {
		e.logger.Warn("failed to append payment history",
			zap.Int64("subscription_id", entry.SubscriptionID),
			zap.String("event", string(entry.Event)),
			zap.Error(err))
	}
}

func (e *Engine) notify(ctx context.Context, tenantID int64, typ notification.NotificationType, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, tenantID, typ, title, message); err != nil {
		e.logger.Warn("failed to send notification",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
}

func (e *Engine) invalidateGate(ctx context.Context, tenantID int64) {
	if e.gate != nil {
		e.gate.Invalidate(ctx, tenantID)
	}
}

// History returns the most recent payment history entries for the tenant.
func (e *Engine) History(ctx context.Context, tenantID int64, limit int) ([]billing.PaymentHistoryEntry, error) {
	return e.history.ListByTenant(ctx, tenantID, limit)
}

// Subscriptions returns all subscriptions for the tenant, newest first.
func (e *Engine) Subscriptions(ctx context.Context, tenantID int64) ([]billing.Subscription, error) {
	return e.subs.ListByTenant(ctx, tenantID)
}

// addCycle advances t by a billing cycle. Multiples of 30 days walk calendar
// months so renewals keep their day-of-month.
func addCycle(t time.Time, cycleDays int) time.Time {
	if cycleDays > 0 && cycleDays%30 == 0 {
		return t.AddDate(0, cycleDays/30, 0)
	}
	return t.AddDate(0, 0, cycleDays)
}
