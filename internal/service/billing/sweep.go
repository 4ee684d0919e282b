// internal/service/billing/sweep.go
package billing

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ExpireOverdue expires every subscription whose cycle end has passed and
// returns the number of rows expired. The sweep is idempotent; a second run
// over the same data expires nothing.
func (e *Engine) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := e.subs.ListOverdue(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("list overdue subscriptions: %w", err)
	}

	expired := 0
	for i := range overdue {
		if e.expireSubscription(ctx, &overdue[i], "Expired by scheduled sweep") {
			expired++
		}
	}
	if expired > 0 {
		e.logger.Info("overdue sweep completed", zap.Int("expired", expired))
	}
	return expired, nil
}
