// internal/service/billing/engine_test.go
package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/notification"
	"smartstrategy-service/internal/gateway"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTrial(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	sub, err := h.engine.CreateTrial(ctx, testTenantID)
	require.NoError(t, err)

	assert.Equal(t, trialPlanID, sub.PlanID)
	assert.True(t, sub.Active)
	assert.False(t, sub.Expired)
	assert.Equal(t, billing.PaymentConfirmed, sub.PaymentStatus)
	assert.Equal(t, h.now.AddDate(0, 0, 7), sub.End)
	assert.False(t, sub.GatewaySubscriptionID.Valid, "trial must not touch the gateway")
	assert.Zero(t, h.gw.customerSeq)

	require.Len(t, h.history.byEvent(billing.HistoryCreation), 1)
	require.Len(t, h.notifier.ofType(notification.TypeActivation), 1)
	assert.Contains(t, h.gate.invalidated, testTenantID)
}

func TestCheckoutCreatesPendingSubscriptionAndCharge(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.engine.Checkout(ctx, testTenantID, proPlanID)
	require.NoError(t, err)

	assert.Equal(t, 149.90, res.Value)
	assert.Equal(t, "https://pay.example/chg-1", res.PaymentLink)
	assert.Equal(t, h.now.AddDate(0, 1, 0), res.DueDate)

	require.Len(t, h.gw.charges, 1)
	assert.Equal(t, billing.ReservationReference(testTenantID, proPlanID), h.gw.charges[0].ExternalReference)
	assert.Equal(t, "cus-1", h.gw.charges[0].CustomerID)

	sub, err := h.subs.FindByID(ctx, res.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentPending, sub.PaymentStatus)
	assert.False(t, sub.Active, "access is only granted once payment confirms")
	assert.False(t, sub.Expired)
	assert.Equal(t, "cus-1", sub.GatewayCustomerID.String)

	// The gateway customer id is persisted on the tenant for reuse.
	tn, err := h.tenants.FindByID(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, "cus-1", tn.GatewayCustomerID.String)
}

func TestCheckoutReusesExistingGatewayCustomer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.tenants.SetGatewayCustomerID(ctx, testTenantID, "cus-existing"))

	_, err := h.engine.Checkout(ctx, testTenantID, proPlanID)
	require.NoError(t, err)

	assert.Zero(t, h.gw.customerSeq)
	assert.Equal(t, "cus-existing", h.gw.charges[0].CustomerID)
}

func TestCheckoutRejectsTrialPlan(t *testing.T) {
	h := newHarness()

	_, err := h.engine.Checkout(context.Background(), testTenantID, trialPlanID)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestCheckoutRejectsInactivePlan(t *testing.T) {
	h := newHarness()
	h.plans.plans[proPlanID].Active = false

	_, err := h.engine.Checkout(context.Background(), testTenantID, proPlanID)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestCheckoutCarriesRemainingDaysOnSamePlan(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedActive(testTenantID, proPlanID, "gwsub-old", h.now.AddDate(0, 0, 10))

	res, err := h.engine.Checkout(ctx, testTenantID, proPlanID)
	require.NoError(t, err)

	// One month ahead plus the 10 unspent days of the running cycle.
	assert.Equal(t, h.now.AddDate(0, 1, 10), res.DueDate)
}

func TestCheckoutChargeCarriesComputedDueDate(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedActive(testTenantID, proPlanID, "gwsub-old", h.now.AddDate(0, 0, 10))

	res, err := h.engine.Checkout(ctx, testTenantID, proPlanID)
	require.NoError(t, err)

	// The charge's due date is the computed next cycle end, carry-over
	// included, not the checkout time.
	require.Len(t, h.gw.charges, 1)
	assert.Equal(t, res.DueDate, h.gw.charges[0].DueDate)
	assert.Equal(t, h.now.AddDate(0, 1, 10), h.gw.charges[0].DueDate)
}

func TestCheckoutDifferentPlanDoesNotCarryDays(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedActive(testTenantID, proPlanID, "gwsub-old", h.now.AddDate(0, 0, 10))

	res, err := h.engine.Checkout(ctx, testTenantID, enterprisePlanID)
	require.NoError(t, err)
	assert.Equal(t, h.now.AddDate(0, 1, 0), res.DueDate)
}

func TestCheckoutCancelsAbandonedPending(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	first, err := h.engine.Checkout(ctx, testTenantID, proPlanID)
	require.NoError(t, err)
	_, err = h.engine.Checkout(ctx, testTenantID, enterprisePlanID)
	require.NoError(t, err)

	stale, err := h.subs.FindByID(ctx, first.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentCancelled, stale.PaymentStatus)
	assert.True(t, stale.Expired)
	require.NotEmpty(t, h.history.byEvent(billing.HistoryCancellation))
}

func TestCheckoutGatewayUnavailable(t *testing.T) {
	h := newHarness()
	h.gw.chargeErr = gateway.ErrUnavailable

	_, err := h.engine.Checkout(context.Background(), testTenantID, proPlanID)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.Empty(t, h.subs.subs, "no pending row without a charge")
}

func TestChangePlanSimulationQuotesProration(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedActive(testTenantID, proPlanID, "gwsub-old", h.now.AddDate(0, 0, 15))

	res, err := h.engine.ChangePlan(ctx, testTenantID, billing.ChangePlanRequest{PlanID: enterprisePlanID})
	require.NoError(t, err)

	assert.True(t, res.Simulated)
	assert.Equal(t, 125.00, res.Prorata)
	assert.Equal(t, 15, res.DaysRemaining)
	assert.Equal(t, 30, res.CycleDays)
	assert.Empty(t, h.gw.charges, "simulation must not charge")
	assert.Empty(t, h.subs.sorted(func(s *billing.Subscription) bool {
		return s.PaymentStatus == billing.PaymentPending
	}))
}

func TestChangePlanUpgradeChargesProratedDifference(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	current := h.seedActive(testTenantID, proPlanID, "gwsub-old", h.now.AddDate(0, 0, 15))

	res, err := h.engine.ChangePlan(ctx, testTenantID, billing.ChangePlanRequest{PlanID: enterprisePlanID, Confirm: true})
	require.NoError(t, err)

	assert.False(t, res.Simulated)
	assert.False(t, res.Activated, "upgrade waits for the payment webhook")
	assert.NotEmpty(t, res.PaymentLink)

	require.Len(t, h.gw.charges, 1)
	assert.Equal(t, 125.00, h.gw.charges[0].Value)
	assert.Equal(t, billing.UpgradeReference(current.ID), h.gw.charges[0].ExternalReference)
	assert.Equal(t, current.End, h.gw.charges[0].DueDate, "prorated charge is due with the cycle it buys")

	pending, err := h.subs.FindByID(ctx, res.NewSubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentPending, pending.PaymentStatus)
	assert.False(t, pending.Active)
	assert.Equal(t, current.End, pending.End, "upgrade keeps the paid-for cycle end")

	// The current subscription keeps running until the payment lands.
	cur, err := h.subs.FindCurrentByTenant(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, current.ID, cur.ID)
}

func TestChangePlanDowngradeSwapsImmediately(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	old := h.seedActive(testTenantID, enterprisePlanID, "gwsub-old", h.now.AddDate(0, 0, 20))

	res, err := h.engine.ChangePlan(ctx, testTenantID, billing.ChangePlanRequest{PlanID: proPlanID, Confirm: true})
	require.NoError(t, err)

	assert.True(t, res.Activated)
	assert.Equal(t, 0.0, res.Prorata)

	require.Len(t, h.gw.subscriptions, 1)
	assert.Equal(t, old.End, h.gw.subscriptions[0].NextDueDate, "first renewal falls on the paid-for end")

	replacement, err := h.subs.FindCurrentByTenant(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, proPlanID, replacement.PlanID)
	assert.Equal(t, old.End, replacement.End)

	// The replaced row is deactivated locally only; its gateway object is
	// torn down by the activation webhook.
	replaced, err := h.subs.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, replaced.Active)
	assert.False(t, replaced.Expired)
	assert.Empty(t, h.gw.cancelled)
	assert.Contains(t, h.gate.invalidated, testTenantID)
}

func TestChangePlanDowngradeGatewayUnavailable(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	old := h.seedActive(testTenantID, enterprisePlanID, "gwsub-old", h.now.AddDate(0, 0, 20))
	h.gw.subErr = gateway.ErrUnavailable

	_, err := h.engine.ChangePlan(ctx, testTenantID, billing.ChangePlanRequest{PlanID: proPlanID, Confirm: true})
	require.ErrorIs(t, err, gateway.ErrUnavailable)

	// Nothing changed locally.
	cur, err := h.subs.FindCurrentByTenant(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, old.ID, cur.ID)
}

func TestChangePlanRejectsSamePlan(t *testing.T) {
	h := newHarness()
	h.seedActive(testTenantID, proPlanID, "", h.now.AddDate(0, 0, 20))

	_, err := h.engine.ChangePlan(context.Background(), testTenantID, billing.ChangePlanRequest{PlanID: proPlanID})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestChangePlanRejectsTrialTarget(t *testing.T) {
	h := newHarness()
	h.seedActive(testTenantID, proPlanID, "", h.now.AddDate(0, 0, 20))

	_, err := h.engine.ChangePlan(context.Background(), testTenantID, billing.ChangePlanRequest{PlanID: trialPlanID})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestChangePlanWithoutCurrentSubscription(t *testing.T) {
	h := newHarness()

	_, err := h.engine.ChangePlan(context.Background(), testTenantID, billing.ChangePlanRequest{PlanID: proPlanID})
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestAddCycle(t *testing.T) {
	base := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	// Multiples of 30 walk calendar months.
	assert.Equal(t, base.AddDate(0, 1, 0), addCycle(base, 30))
	assert.Equal(t, base.AddDate(0, 2, 0), addCycle(base, 60))
	// Anything else adds plain days.
	assert.Equal(t, base.AddDate(0, 0, 7), addCycle(base, 7))
	assert.Equal(t, base.AddDate(0, 0, 45), addCycle(base, 45))
}

func TestSubscriptionDaysRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &billing.Subscription{End: now.AddDate(0, 0, 10)}
	assert.Equal(t, 10, s.DaysRemaining(now))

	s.End = now.AddDate(0, 0, -1)
	assert.Equal(t, 0, s.DaysRemaining(now), "never negative")
}

func TestCheckoutCustomerCreationFailure(t *testing.T) {
	h := newHarness()
	h.gw.customerErr = errors.New("boom")

	_, err := h.engine.Checkout(context.Background(), testTenantID, proPlanID)
	require.Error(t, err)
	assert.Empty(t, h.subs.subs)
}
