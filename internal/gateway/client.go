// internal/gateway/client.go
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable covers network failures and gateway 5xx responses. The
// lifecycle engine never marks local state confirmed on this error, but it
// may still cancel local state without a successful round-trip.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Remote subscription statuses reported by the gateway.
const (
	RemoteStatusActive   = "ACTIVE"
	RemoteStatusInactive = "INACTIVE"
	RemoteStatusExpired  = "EXPIRED"
)

type CustomerRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	ExternalReference string `json:"externalReference,omitempty"`
}

type ChargeRequest struct {
	CustomerID        string    `json:"customer"`
	Value             float64   `json:"value"`
	Description       string    `json:"description"`
	DueDate           time.Time `json:"dueDate"`
	ExternalReference string    `json:"externalReference"`
}

type Charge struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PaymentLink string `json:"invoiceUrl"`
}

type SubscriptionRequest struct {
	CustomerID  string    `json:"customer"`
	Value       float64   `json:"value"`
	CycleDays   int       `json:"cycleDays"`
	Description string    `json:"description"`
	NextDueDate time.Time `json:"nextDueDate"`
}

type RemoteSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ProductRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Client abstracts the payment gateway of record. All calls are synchronous
// HTTP underneath; implementations must apply an explicit timeout.
type Client interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (string, error)
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error
	GetSubscriptionStatus(ctx context.Context, gatewaySubscriptionID string) (string, error)
	ListCustomerSubscriptions(ctx context.Context, customerID string) ([]RemoteSubscription, error)

	// EnsureProduct creates or updates the gateway-side representation of a
	// plan and returns its product id.
	EnsureProduct(ctx context.Context, productID string, req ProductRequest) (string, error)
}

// IsRemoteActive reports whether a gateway-reported status counts as an
// active recurring subscription.
func IsRemoteActive(status string) bool {
	return status == RemoteStatusActive
}
