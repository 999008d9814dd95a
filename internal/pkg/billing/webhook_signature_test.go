package billing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"event":"subscription.charged","payload":{"subscription_id":"sub_123"}}`)
	secret := "whsec_test"
	valid := SignWebhookPayload(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		expected  bool
	}{
		{"valid signature", payload, valid, secret, true},
		{"uppercase hex accepted", payload, strings.ToUpper(valid), secret, true},
		{"signature with whitespace", payload, "  " + valid + "  ", secret, true},
		{"tampered payload", []byte(`{"event":"subscription.charged","payload":{"subscription_id":"sub_999"}}`), valid, secret, false},
		{"wrong secret", payload, valid, "whsec_other", false},
		{"empty signature", payload, "", secret, false},
		{"empty secret", payload, valid, "", false},
		{"non-hex signature", payload, "not-hex!", secret, false},
		{"truncated signature", payload, valid[:32], secret, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VerifyWebhookSignature(tt.payload, tt.signature, tt.secret))
		})
	}
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event":"subscription.activated","payload":{"subscription_id":"sub_1"}}`))
	assert.NoError(t, err)
	assert.Equal(t, EventSubscriptionActivated, env.Event)

	_, err = ParseEnvelope([]byte(`{"payload":{}}`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseSubscriptionEvent(t *testing.T) {
	ev, err := ParseSubscriptionEvent([]byte(`{"subscription_id":"sub_1","payment_id":"pay_1","amount":9900}`))
	assert.NoError(t, err)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
	assert.Equal(t, int64(9900), ev.Amount)

	_, err = ParseSubscriptionEvent([]byte(`{"payment_id":"pay_1"}`))
	assert.Error(t, err)
}

func TestIsSubscriptionEvent(t *testing.T) {
	assert.True(t, IsSubscriptionEvent(EventSubscriptionCharged))
	assert.True(t, IsSubscriptionEvent(" Subscription.Halted "))
	assert.False(t, IsSubscriptionEvent(EventOrderPaid))
	assert.False(t, IsSubscriptionEvent(""))
}
