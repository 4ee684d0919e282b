// internal/domain/billing/webhook.go
package billing

import (
	"database/sql"
	"time"
)

// Gateway webhook event names, as delivered on the wire.
const (
	EventSubscriptionCreated     = "SUBSCRIPTION_CREATED"
	EventSubscriptionActivated   = "SUBSCRIPTION_ACTIVATED"
	EventSubscriptionCancelled   = "SUBSCRIPTION_CANCELLED"
	EventSubscriptionDeleted     = "SUBSCRIPTION_DELETED"
	EventSubscriptionInactivated = "SUBSCRIPTION_INACTIVATED"
	EventSubscriptionUpdated     = "SUBSCRIPTION_UPDATED"
	EventPaymentReceived         = "PAYMENT_RECEIVED"
	EventPaymentConfirmed        = "PAYMENT_CONFIRMED"
	EventPaymentOverdue          = "PAYMENT_OVERDUE"
	EventPaymentDeleted          = "PAYMENT_DELETED"
)

type WebhookStatus string

const (
	WebhookReceived  WebhookStatus = "received"
	WebhookProcessed WebhookStatus = "processed"
	WebhookFailed    WebhookStatus = "failed"
)

// WebhookEvent is the verbatim persisted record of a received payload.
// Every payload is stored before processing, for replay and audit.
type WebhookEvent struct {
	ID                string         `json:"id" db:"id"`
	Event             string         `json:"event" db:"event"`
	GatewayObjectID   string         `json:"gateway_object_id" db:"gateway_object_id"`
	ExternalReference string         `json:"external_reference" db:"external_reference"`
	Payload           []byte         `json:"-" db:"payload"`
	Status            WebhookStatus  `json:"status" db:"status"`
	ErrorMessage      sql.NullString `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	ProcessedAt       sql.NullTime   `json:"processed_at,omitempty" db:"processed_at"`
}

// WebhookPayload is the inbound JSON envelope from the gateway.
type WebhookPayload struct {
	Event        string               `json:"event" binding:"required"`
	Subscription *WebhookSubscription `json:"subscription,omitempty"`
	Payment      *WebhookPayment      `json:"payment,omitempty"`
}

type WebhookSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

type WebhookPayment struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Subscription      string  `json:"subscription"`
	ExternalReference string  `json:"externalReference"`
	Value             float64 `json:"value"`
}

// ObjectID returns the gateway id of whichever nested object is present.
func (p *WebhookPayload) ObjectID() string {
	if p.Payment != nil {
		return p.Payment.ID
	}
	if p.Subscription != nil {
		return p.Subscription.ID
	}
	return ""
}

// Reference returns the correlation reference carried by a payment
// payload, or the gateway subscription id for subscription payloads.
// Recurring payments carry no external reference; their parent
// subscription id is the reference.
func (p *WebhookPayload) Reference() string {
	if p.Payment != nil {
		if p.Payment.ExternalReference != "" {
			return p.Payment.ExternalReference
		}
		if p.Payment.Subscription != "" {
			return p.Payment.Subscription
		}
	}
	if p.Subscription != nil {
		return p.Subscription.ID
	}
	return ""
}
