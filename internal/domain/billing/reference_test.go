// internal/domain/billing/reference_test.go
package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgradeReferenceRoundTrip(t *testing.T) {
	ref, err := ParseReference(UpgradeReference(42))
	require.NoError(t, err)
	assert.Equal(t, ReferenceUpgrade, ref.Kind)
	assert.Equal(t, int64(42), ref.SubscriptionID)
}

func TestReservationReferenceRoundTrip(t *testing.T) {
	ref, err := ParseReference(ReservationReference(7, 3))
	require.NoError(t, err)
	assert.Equal(t, ReferenceReservation, ref.Kind)
	assert.Equal(t, int64(7), ref.TenantID)
	assert.Equal(t, int64(3), ref.PlanID)
}

func TestParseReferenceBareGatewayID(t *testing.T) {
	ref, err := ParseReference("sub_a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, ReferenceDirect, ref.Kind)
	assert.Equal(t, "sub_a1b2c3", ref.GatewaySubscriptionID)
}

func TestParseReferenceMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"UPGRADE_",
		"UPGRADE_abc",
		"RESERVATION_1",
		"RESERVATION_1_2_3",
		"RESERVATION_x_2",
		"RESERVATION_1_y",
	} {
		_, err := ParseReference(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestWebhookPayloadReference(t *testing.T) {
	// External reference wins over the payment's parent subscription.
	p := &WebhookPayload{Payment: &WebhookPayment{ExternalReference: "UPGRADE_5", Subscription: "sub_x"}}
	assert.Equal(t, "UPGRADE_5", p.Reference())

	// Recurring payments fall back to the parent subscription id.
	p = &WebhookPayload{Payment: &WebhookPayment{Subscription: "sub_x"}}
	assert.Equal(t, "sub_x", p.Reference())

	// Subscription events reference themselves.
	p = &WebhookPayload{Subscription: &WebhookSubscription{ID: "sub_y"}}
	assert.Equal(t, "sub_y", p.Reference())

	assert.Equal(t, "", (&WebhookPayload{}).Reference())
}
