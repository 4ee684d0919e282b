// internal/domain/billing/reference.go
package billing

import (
	"fmt"
	"strconv"
	"strings"
)

// The external reference attached to one-time gateway charges is the only
// link between an asynchronous payment confirmation and the local row that
// requested it. The format is a stable part of the integration contract:
//
//	UPGRADE_<subscription_id>          proration charge for an upgrade
//	RESERVATION_<tenant_id>_<plan_id>  trial-to-paid reservation
//	<anything else>                    bare gateway subscription id (renewal)

type ReferenceKind string

const (
	ReferenceUpgrade     ReferenceKind = "upgrade"
	ReferenceReservation ReferenceKind = "reservation"
	ReferenceDirect      ReferenceKind = "direct"
)

const (
	upgradePrefix     = "UPGRADE_"
	reservationPrefix = "RESERVATION_"
)

type PaymentReference struct {
	Kind ReferenceKind

	// Upgrade: the currently active subscription being superseded
	SubscriptionID int64

	// Reservation
	TenantID int64
	PlanID   int64

	// Direct: the gateway's own subscription id
	GatewaySubscriptionID string
}

// UpgradeReference builds the reference for a proration charge bound to
// the subscription being upgraded away from.
func UpgradeReference(subscriptionID int64) string {
	return fmt.Sprintf("%s%d", upgradePrefix, subscriptionID)
}

// ReservationReference builds the reference for a trial-to-paid
// reservation charge.
func ReservationReference(tenantID, planID int64) string {
	return fmt.Sprintf("%s%d_%d", reservationPrefix, tenantID, planID)
}

// ParseReference decodes an external reference. Strings that carry a known
// prefix but do not parse are rejected; anything else is treated as a bare
// gateway subscription id.
func ParseReference(s string) (PaymentReference, error) {
	switch {
	case strings.HasPrefix(s, upgradePrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(s, upgradePrefix), 10, 64)
		if err != nil {
			return PaymentReference{}, fmt.Errorf("malformed upgrade reference %q: %w", s, err)
		}
		return PaymentReference{Kind: ReferenceUpgrade, SubscriptionID: id}, nil

	case strings.HasPrefix(s, reservationPrefix):
		parts := strings.Split(strings.TrimPrefix(s, reservationPrefix), "_")
		if len(parts) != 2 {
			return PaymentReference{}, fmt.Errorf("malformed reservation reference %q", s)
		}
		tenantID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return PaymentReference{}, fmt.Errorf("malformed reservation reference %q: %w", s, err)
		}
		planID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return PaymentReference{}, fmt.Errorf("malformed reservation reference %q: %w", s, err)
		}
		return PaymentReference{Kind: ReferenceReservation, TenantID: tenantID, PlanID: planID}, nil

	case s == "":
		return PaymentReference{}, fmt.Errorf("empty external reference")

	default:
		return PaymentReference{Kind: ReferenceDirect, GatewaySubscriptionID: s}, nil
	}
}
