// internal/service/access/gate.go
package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smartstrategy-service/internal/domain/billing"
	"smartstrategy-service/internal/domain/plan"
	"smartstrategy-service/internal/domain/tenant"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type SubscriptionReader interface {
	FindCurrentByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error)
}

type PlanReader interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
}

type TenantReader interface {
	FindByID(ctx context.Context, id int64) (*tenant.Tenant, error)
}

// Gate answers "may this tenant use module X" on the platform's hot path.
// It is a pure read: it never mutates subscription rows and never calls the
// gateway. Results are cached in redis and invalidated by the lifecycle
// engine on every transition.
type Gate struct {
	subs    SubscriptionReader
	plans   PlanReader
	tenants TenantReader
	cache   *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewGate(subs SubscriptionReader, plans PlanReader, tenants TenantReader, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *Gate {
	return &Gate{
		subs:    subs,
		plans:   plans,
		tenants: tenants,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func cacheKey(tenantID int64) string {
	return fmt.Sprintf("access:tenant:%d", tenantID)
}

// Access returns the tenant's gate result, served from cache when possible.
// A cache outage degrades to a direct read.
func (g *Gate) Access(ctx context.Context, tenantID int64) (*billing.AccessInfo, error) {
	if g.cache != nil {
		raw, err := g.cache.Get(ctx, cacheKey(tenantID)).Result()
		if err == nil {
			var cached billing.AccessInfo
			if jerr := json.Unmarshal([]byte(raw), &cached); jerr == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			g.logger.Warn("access cache read failed",
				zap.Int64("tenant_id", tenantID), zap.Error(err))
		}
	}

	info, err := g.compute(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		if raw, jerr := json.Marshal(info); jerr == nil {
			if err := g.cache.Set(ctx, cacheKey(tenantID), raw, g.ttl).Err(); err != nil {
				g.logger.Warn("access cache write failed",
					zap.Int64("tenant_id", tenantID), zap.Error(err))
			}
		}
	}
	return info, nil
}

func (g *Gate) compute(ctx context.Context, tenantID int64) (*billing.AccessInfo, error) {
	inactive := &billing.AccessInfo{Active: false, Modules: []string{}}

	tn, err := g.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tn.Active {
		return inactive, nil
	}

	sub, err := g.subs.FindCurrentByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return inactive, nil
		}
		return nil, err
	}
	// A past-due row that the sweep has not reached yet grants nothing.
	if sub.PastDue(g.now()) {
		return inactive, nil
	}

	p, err := g.plans.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	return &billing.AccessInfo{Active: true, Modules: p.Modules()}, nil
}

// IsActive reports whether the tenant currently has platform access.
func (g *Gate) IsActive(ctx context.Context, tenantID int64) (bool, error) {
	info, err := g.Access(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return info.Active, nil
}

// PermittedModules returns the module flags of the tenant's current plan,
// empty when access is off.
func (g *Gate) PermittedModules(ctx context.Context, tenantID int64) ([]string, error) {
	info, err := g.Access(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return info.Modules, nil
}

// Invalidate drops the cached gate result after a lifecycle transition.
func (g *Gate) Invalidate(ctx context.Context, tenantID int64) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Del(ctx, cacheKey(tenantID)).Err(); err != nil {
		g.logger.Warn("access cache invalidation failed",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
}
