// internal/service/billing/reconcile_test.go
package billing

import (
	"context"
	"errors"
	"testing"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/gateway"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentSubscriptionReturnsActiveRow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := h.seedActive(testTenantID, proPlanID, "", h.now.AddDate(0, 0, 10))

	got, err := h.engine.CurrentSubscription(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
}

func TestCurrentSubscriptionExpiresPastDueOnRead(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := h.seedActive(testTenantID, proPlanID, "gwsub-7", h.now.AddDate(0, 0, -1))

	_, err := h.engine.CurrentSubscription(ctx, testTenantID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	expired, err := h.subs.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, expired.Expired)
	assert.Contains(t, h.gw.cancelled, "gwsub-7")
	require.Len(t, h.history.byEvent(billing.HistoryExpiration), 1)

	tn, err := h.tenants.FindByID(ctx, testTenantID)
	require.NoError(t, err)
	assert.False(t, tn.Active)
}

func TestCurrentSubscriptionSkipsGatewayWithoutCustomer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedActive(testTenantID, trialPlanID, "", h.now.AddDate(0, 0, 5))

	_, err := h.engine.CurrentSubscription(ctx, testTenantID)
	require.NoError(t, err)
	assert.Zero(t, h.gw.listCalls, "no gateway round-trip without a customer id")
}

func TestReconcileForceCancelsRemotelyInactiveRows(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.tenants.SetGatewayCustomerID(ctx, testTenantID, "cus-1"))
	sub := h.seedActive(testTenantID, proPlanID, "gwsub-9", h.now.AddDate(0, 0, 20))
	h.gw.remote["cus-1"] = []gateway.RemoteSubscription{{ID: "gwsub-9", Status: gateway.RemoteStatusInactive}}

	_, err := h.engine.CurrentSubscription(ctx, testTenantID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	cancelled, err := h.subs.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Expired)
	assert.Equal(t, billing.PaymentCancelled, cancelled.PaymentStatus)
}

func TestReconcileLeavesLocalOnlyRowsAlone(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.tenants.SetGatewayCustomerID(ctx, testTenantID, "cus-1"))
	trial := h.seedActive(testTenantID, trialPlanID, "", h.now.AddDate(0, 0, 5))

	// The gateway knows nothing about this customer's trial; reconciliation
	// must not touch rows that never had a gateway object.
	got, err := h.engine.CurrentSubscription(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, trial.ID, got.ID)
	assert.True(t, got.Active)
}

func TestReconcileGatewayOutageDegradesToLocalState(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.tenants.SetGatewayCustomerID(ctx, testTenantID, "cus-1"))
	sub := h.seedActive(testTenantID, proPlanID, "gwsub-9", h.now.AddDate(0, 0, 20))
	h.gw.listErr = errors.New("gateway timeout")

	got, err := h.engine.CurrentSubscription(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.True(t, got.Active, "an unreachable gateway never revokes access")
}

func TestReconcileAdoptsRemotelyActiveDormantRow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.tenants.SetGatewayCustomerID(ctx, testTenantID, "cus-1"))
	require.NoError(t, h.tenants.SetActive(ctx, testTenantID, false))

	dormant := h.seedActive(testTenantID, proPlanID, "gwsub-5", h.now.AddDate(0, 0, 20))
	_, err := h.subs.MarkExpired(ctx, dormant.ID)
	require.NoError(t, err)

	h.gw.remote["cus-1"] = []gateway.RemoteSubscription{{ID: "gwsub-5", Status: gateway.RemoteStatusActive}}

	got, err := h.engine.CurrentSubscription(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, dormant.ID, got.ID)
	assert.True(t, got.Active)
	assert.False(t, got.Expired)

	tn, err := h.tenants.FindByID(ctx, testTenantID)
	require.NoError(t, err)
	assert.True(t, tn.Active, "adopting a paid remote subscription restores access")
}

func TestExpireOverdueSweep(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.seedActive(testTenantID, proPlanID, "gwsub-1", h.now.AddDate(0, 0, -3))
	h.tenants.tenants[2] = tenantFixture(2)
	h.seedActive(2, proPlanID, "", h.now.AddDate(0, 0, -1))
	h.tenants.tenants[3] = tenantFixture(3)
	alive := h.seedActive(3, proPlanID, "", h.now.AddDate(0, 0, 10))

	expired, err := h.engine.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)
	assert.Contains(t, h.gw.cancelled, "gwsub-1")

	still, err := h.subs.FindByID(ctx, alive.ID)
	require.NoError(t, err)
	assert.True(t, still.Active)

	// Idempotent: a second pass over the same data expires nothing.
	expired, err = h.engine.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}
