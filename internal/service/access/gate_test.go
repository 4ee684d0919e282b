// internal/service/access/gate_test.go
package access

import (
	"context"
	"testing"
	"time"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/plan"
	"smartstrategy-service/internal/domain/tenant"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSubs struct {
	sub *billing.Subscription
	err error
}

func (s stubSubs) FindCurrentByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	return s.sub, s.err
}

type stubPlans struct {
	plan *plan.Plan
}

func (s stubPlans) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	return s.plan, nil
}

type stubTenants struct {
	tenant *tenant.Tenant
	err    error
}

func (s stubTenants) FindByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	return s.tenant, s.err
}

var gateNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestGate builds a gate with no cache; every read computes.
func newTestGate(subs SubscriptionReader, plans PlanReader, tenants TenantReader) *Gate {
	g := NewGate(subs, plans, tenants, nil, time.Minute, zap.NewNop())
	g.now = func() time.Time { return gateNow }
	return g
}

func TestAccessGrantsPlanModules(t *testing.T) {
	g := newTestGate(
		stubSubs{sub: &billing.Subscription{PlanID: 2, Active: true, End: gateNow.AddDate(0, 0, 10)}},
		stubPlans{plan: &plan.Plan{ID: 2, FinancialModule: true, MarketingModule: true}},
		stubTenants{tenant: &tenant.Tenant{ID: 1, Active: true}},
	)

	info, err := g.Access(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, []string{plan.ModuleFinancial, plan.ModuleMarketing}, info.Modules)

	active, err := g.IsActive(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestAccessDeniedForBlockedTenant(t *testing.T) {
	g := newTestGate(
		stubSubs{sub: &billing.Subscription{PlanID: 2, Active: true, End: gateNow.AddDate(0, 0, 10)}},
		stubPlans{plan: &plan.Plan{ID: 2, FinancialModule: true}},
		stubTenants{tenant: &tenant.Tenant{ID: 1, Active: false}},
	)

	info, err := g.Access(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, info.Active)
	assert.Empty(t, info.Modules)
}

func TestAccessDeniedWithoutSubscription(t *testing.T) {
	g := newTestGate(
		stubSubs{err: xerrors.ErrNotFound},
		stubPlans{},
		stubTenants{tenant: &tenant.Tenant{ID: 1, Active: true}},
	)

	info, err := g.Access(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, info.Active)

	modules, err := g.PermittedModules(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, modules)
}

func TestAccessDeniedForPastDueSubscription(t *testing.T) {
	// The row is still flagged active but its cycle end has passed; the
	// gate must not wait for the sweep to deny access.
	g := newTestGate(
		stubSubs{sub: &billing.Subscription{PlanID: 2, Active: true, End: gateNow.AddDate(0, 0, -1)}},
		stubPlans{plan: &plan.Plan{ID: 2, FinancialModule: true}},
		stubTenants{tenant: &tenant.Tenant{ID: 1, Active: true}},
	)

	info, err := g.Access(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, info.Active)
}

func TestInvalidateWithoutCacheIsHarmless(t *testing.T) {
	g := newTestGate(stubSubs{}, stubPlans{}, stubTenants{})
	g.Invalidate(context.Background(), 1)
}
