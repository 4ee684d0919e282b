// internal/service/billing/fakes_test.go
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/notification"
	"smartstrategy-service/internal/domain/plan"
	"smartstrategy-service/internal/domain/tenant"
	"smartstrategy-service/internal/gateway"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// In-memory stand-ins for the postgres repositories and the gateway client.
// They mirror the repositories' query semantics, including newest-first
// ordering, ErrNotFound on empty results and the serialization that row
// locks give concurrent activation transactions.

type fakeTx struct {
	pgx.Tx
	release func()
}

func (t *fakeTx) Commit(ctx context.Context) error   { t.close(); return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { t.close(); return nil }

func (t *fakeTx) close() {
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

// fakeDB admits one transaction at a time, standing in for the FOR UPDATE
// row lock that serializes activations in postgres.
type fakeDB struct {
	mu sync.Mutex
}

func (d *fakeDB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	d.mu.Lock()
	return &fakeTx{release: d.mu.Unlock}, nil
}

type fakeSubStore struct {
	mu     sync.Mutex
	nextID int64
	seq    int
	subs   map[int64]*billing.Subscription
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{nextID: 1, subs: map[int64]*billing.Subscription{}}
}

func cloneSub(s *billing.Subscription) *billing.Subscription {
	c := *s
	return &c
}

func (f *fakeSubStore) Create(ctx context.Context, s *billing.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.nextID
	f.nextID++
	f.seq++
	s.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second)
	f.subs[s.ID] = cloneSub(s)
	return nil
}

// sorted returns every row matching keep, newest first.
func (f *fakeSubStore) sorted(keep func(*billing.Subscription) bool) []billing.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []billing.Subscription{}
	for _, s := range f.subs {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeSubStore) newest(keep func(*billing.Subscription) bool) (*billing.Subscription, error) {
	matches := f.sorted(keep)
	if len(matches) == 0 {
		return nil, xerrors.ErrNotFound
	}
	return cloneSub(&matches[0]), nil
}

func (f *fakeSubStore) FindByID(ctx context.Context, id int64) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return cloneSub(s), nil
}

func (f *fakeSubStore) FindForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*billing.Subscription, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeSubStore) FindCurrentByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	return f.newest(func(s *billing.Subscription) bool {
		return s.TenantID == tenantID && s.Active && !s.Expired
	})
}

func (f *fakeSubStore) FindNewestByGatewayID(ctx context.Context, gatewayID string) (*billing.Subscription, error) {
	return f.newest(func(s *billing.Subscription) bool {
		return s.GatewaySubscriptionID.Valid && s.GatewaySubscriptionID.String == gatewayID
	})
}

func (f *fakeSubStore) FindNewestPendingByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	return f.newest(func(s *billing.Subscription) bool {
		return s.TenantID == tenantID && s.PaymentStatus == billing.PaymentPending && !s.Active && !s.Expired
	})
}

func (f *fakeSubStore) FindNewestPendingForPlan(ctx context.Context, tenantID, planID int64) (*billing.Subscription, error) {
	return f.newest(func(s *billing.Subscription) bool {
		return s.TenantID == tenantID && s.PlanID == planID && s.PaymentStatus == billing.PaymentPending && !s.Expired
	})
}

func (f *fakeSubStore) ListPendingInactive(ctx context.Context, tenantID int64) ([]billing.Subscription, error) {
	return f.sorted(func(s *billing.Subscription) bool {
		return s.TenantID == tenantID && s.PaymentStatus == billing.PaymentPending && !s.Active && !s.Expired
	}), nil
}

func (f *fakeSubStore) ListActiveByTenant(ctx context.Context, tenantID int64) ([]billing.Subscription, error) {
	return f.sorted(func(s *billing.Subscription) bool {
		return s.TenantID == tenantID && s.Active && !s.Expired
	}), nil
}

func (f *fakeSubStore) ListByTenant(ctx context.Context, tenantID int64) ([]billing.Subscription, error) {
	return f.sorted(func(s *billing.Subscription) bool {
		return s.TenantID == tenantID
	}), nil
}

func (f *fakeSubStore) ListCurrentByPlan(ctx context.Context, planID int64) ([]billing.Subscription, error) {
	return f.sorted(func(s *billing.Subscription) bool {
		return s.PlanID == planID && !s.Expired
	}), nil
}

func (f *fakeSubStore) ListOverdue(ctx context.Context, now time.Time) ([]billing.Subscription, error) {
	return f.sorted(func(s *billing.Subscription) bool {
		return s.End.Before(now) && !s.Expired
	}), nil
}

func (f *fakeSubStore) Update(ctx context.Context, s *billing.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s.ID]; !ok {
		return xerrors.ErrNotFound
	}
	f.subs[s.ID] = cloneSub(s)
	return nil
}

func (f *fakeSubStore) UpdateWithTx(ctx context.Context, tx pgx.Tx, s *billing.Subscription) error {
	return f.Update(ctx, s)
}

func (f *fakeSubStore) MarkExpired(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return false, xerrors.ErrNotFound
	}
	if s.Expired {
		return false, nil
	}
	s.Active = false
	s.Expired = true
	return true, nil
}

func (f *fakeSubStore) DeactivateSiblingsWithTx(ctx context.Context, tx pgx.Tx, tenantID, keepID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.subs {
		if s.TenantID == tenantID && s.ID != keepID && s.Active && !s.Expired {
			s.Active = false
			s.Expired = true
			n++
		}
	}
	return n, nil
}

type fakePlanStore struct {
	plans map[int64]*plan.Plan
}

func (f *fakePlanStore) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakePlanStore) FindByCode(ctx context.Context, code string) (*plan.Plan, error) {
	for _, p := range f.plans {
		if p.Code == code {
			c := *p
			return &c, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

type fakeTenantStore struct {
	mu      sync.Mutex
	tenants map[int64]*tenant.Tenant
}

func (f *fakeTenantStore) FindByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTenantStore) FindByGatewayCustomerID(ctx context.Context, customerID string) (*tenant.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tenants {
		if t.GatewayCustomerID.Valid && t.GatewayCustomerID.String == customerID {
			c := *t
			return &c, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeTenantStore) SetActive(ctx context.Context, id int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	t.Active = active
	return nil
}

func (f *fakeTenantStore) SetGatewayCustomerID(ctx context.Context, id int64, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	t.GatewayCustomerID = sql.NullString{String: customerID, Valid: true}
	return nil
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	entries []billing.PaymentHistoryEntry
}

func (f *fakeHistoryStore) Append(ctx context.Context, e *billing.PaymentHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := *e
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistoryStore) ListByTenant(ctx context.Context, tenantID int64, limit int) ([]billing.PaymentHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []billing.PaymentHistoryEntry{}
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].TenantID == tenantID {
			out = append(out, f.entries[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeHistoryStore) byEvent(event billing.HistoryEvent) []billing.PaymentHistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []billing.PaymentHistoryEntry{}
	for _, e := range f.entries {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeWebhookStore struct {
	mu     sync.Mutex
	events []*billing.WebhookEvent
}

func (f *fakeWebhookStore) Insert(ctx context.Context, e *billing.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *e
	f.events = append(f.events, &c)
	return nil
}

func (f *fakeWebhookStore) find(id string) *billing.WebhookEvent {
	for _, e := range f.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (f *fakeWebhookStore) MarkProcessed(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.find(id)
	if e == nil {
		return xerrors.ErrNotFound
	}
	e.Status = billing.WebhookProcessed
	return nil
}

func (f *fakeWebhookStore) MarkFailed(ctx context.Context, id string, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.find(id)
	if e == nil {
		return xerrors.ErrNotFound
	}
	e.Status = billing.WebhookFailed
	e.ErrorMessage = sql.NullString{String: cause.Error(), Valid: true}
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	customerSeq int
	chargeSeq   int
	subSeq      int

	charges       []gateway.ChargeRequest
	subscriptions []gateway.SubscriptionRequest
	cancelled     []string
	listCalls     int

	remote map[string][]gateway.RemoteSubscription

	customerErr error
	chargeErr   error
	subErr      error
	cancelErr   error
	listErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{remote: map[string][]gateway.RemoteSubscription{}}
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, req gateway.CustomerRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.customerErr != nil {
		return "", f.customerErr
	}
	f.customerSeq++
	return fmt.Sprintf("cus-%d", f.customerSeq), nil
}

func (f *fakeGateway) CreateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	f.chargeSeq++
	f.charges = append(f.charges, req)
	id := fmt.Sprintf("chg-%d", f.chargeSeq)
	return &gateway.Charge{ID: id, Status: "PENDING", PaymentLink: "https://pay.example/" + id}, nil
}

func (f *fakeGateway) CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return "", f.subErr
	}
	f.subSeq++
	f.subscriptions = append(f.subscriptions, req)
	return fmt.Sprintf("gwsub-%d", f.subSeq), nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, gatewaySubscriptionID)
	return nil
}

func (f *fakeGateway) GetSubscriptionStatus(ctx context.Context, gatewaySubscriptionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, subs := range f.remote {
		for _, s := range subs {
			if s.ID == gatewaySubscriptionID {
				return s.Status, nil
			}
		}
	}
	return "", xerrors.ErrNotFound
}

func (f *fakeGateway) ListCustomerSubscriptions(ctx context.Context, customerID string) ([]gateway.RemoteSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.remote[customerID], nil
}

func (f *fakeGateway) EnsureProduct(ctx context.Context, productID string, req gateway.ProductRequest) (string, error) {
	if productID != "" {
		return productID, nil
	}
	return "prod-1", nil
}

type sentNotification struct {
	TenantID int64
	Type     notification.NotificationType
	Title    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Notify(ctx context.Context, tenantID int64, typ notification.NotificationType, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{TenantID: tenantID, Type: typ, Title: title})
	return nil
}

func (f *fakeNotifier) ofType(typ notification.NotificationType) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []sentNotification{}
	for _, n := range f.sent {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type fakeGate struct {
	mu          sync.Mutex
	invalidated []int64
}

func (f *fakeGate) Invalidate(ctx context.Context, tenantID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, tenantID)
}

type harness struct {
	engine   *Engine
	subs     *fakeSubStore
	plans    *fakePlanStore
	tenants  *fakeTenantStore
	history  *fakeHistoryStore
	webhooks *fakeWebhookStore
	gw       *fakeGateway
	notifier *fakeNotifier
	gate     *fakeGate
	now      time.Time
}

const (
	trialPlanID      = int64(1)
	proPlanID        = int64(2)
	enterprisePlanID = int64(3)
	testTenantID     = int64(1)
)

func newHarness() *harness {
	h := &harness{
		subs: newFakeSubStore(),
		plans: &fakePlanStore{plans: map[int64]*plan.Plan{
			trialPlanID: {
				ID: trialPlanID, Code: plan.CodeTrial, Name: "Trial",
				Price: 0, CycleDays: 7, TrialDays: 7, Active: true,
				FinancialModule: true, MarketingModule: true, InfluencerModule: true, AnalyticsModule: true,
			},
			proPlanID: {
				ID: proPlanID, Code: plan.CodePro, Name: "Pro",
				Price: 149.90, CycleDays: 30, Active: true,
				FinancialModule: true, MarketingModule: true,
			},
			enterprisePlanID: {
				ID: enterprisePlanID, Code: plan.CodeEnterprise, Name: "Enterprise",
				Price: 399.90, CycleDays: 30, Active: true,
				FinancialModule: true, MarketingModule: true, InfluencerModule: true, AnalyticsModule: true,
			},
		}},
		tenants: &fakeTenantStore{tenants: map[int64]*tenant.Tenant{
			testTenantID: {ID: testTenantID, Name: "Acme", Email: "billing@acme.test", Active: true},
		}},
		history:  &fakeHistoryStore{},
		webhooks: &fakeWebhookStore{},
		gw:       newFakeGateway(),
		notifier: &fakeNotifier{},
		gate:     &fakeGate{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.engine = NewEngine(h.subs, h.plans, h.tenants, h.history, h.webhooks, h.gw, &fakeDB{}, h.notifier, h.gate, zap.NewNop())
	h.engine.now = func() time.Time { return h.now }
	return h
}

func tenantFixture(id int64) *tenant.Tenant {
	return &tenant.Tenant{ID: id, Name: fmt.Sprintf("Tenant %d", id), Email: fmt.Sprintf("tenant%d@acme.test", id), Active: true}
}

// seedActive puts the tenant on a confirmed, active subscription linked to
// the given gateway id (empty for a pure-local row such as a trial).
func (h *harness) seedActive(t int64, planID int64, gatewayID string, end time.Time) *billing.Subscription {
	sub := &billing.Subscription{
		TenantID:      t,
		PlanID:        planID,
		Start:         h.now.AddDate(0, 0, -5),
		End:           end,
		PaymentStatus: billing.PaymentConfirmed,
		Active:        true,
	}
	if gatewayID != "" {
		sub.GatewaySubscriptionID = sql.NullString{String: gatewayID, Valid: true}
	}
	if err := h.subs.Create(context.Background(), sub); err != nil {
		panic(err)
	}
	return sub
}
