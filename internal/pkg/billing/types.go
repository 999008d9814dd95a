package billing

import (
	"encoding/json"
	"errors"
	"strings"
)

// Provider webhook event names. The provider redelivers events at will;
// every consumer must be idempotent.
const (
	EventSubscriptionAuthenticated = "subscription.authenticated"
	EventSubscriptionActivated     = "subscription.activated"
	EventSubscriptionCharged       = "subscription.charged"
	EventSubscriptionPending       = "subscription.pending"
	EventSubscriptionHalted        = "subscription.halted"
	EventSubscriptionCancelled     = "subscription.cancelled"
	EventSubscriptionCompleted     = "subscription.completed"
	EventOrderPaid                 = "order.paid"
)

// WebhookEnvelope is the provider's wire shape: {event, payload} plus a
// signature header over the raw body.
type WebhookEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// SubscriptionEvent is the normalized payload of subscription.* events.
type SubscriptionEvent struct {
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	PlanRef        string `json:"plan_ref"`
	PaymentID      string `json:"payment_id"`
	Amount         int64  `json:"amount"`
}

// OrderEvent is the normalized payload of order.* events (one-off upgrade
// charges).
type OrderEvent struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// ParseEnvelope decodes and minimally validates the webhook body.
func ParseEnvelope(body []byte) (*WebhookEnvelope, error) {
	var env WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.Event) == "" {
		return nil, errors.New("webhook envelope missing event")
	}
	return &env, nil
}

// ParseSubscriptionEvent decodes a subscription.* payload.
func ParseSubscriptionEvent(payload json.RawMessage) (*SubscriptionEvent, error) {
	var ev SubscriptionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.SubscriptionID) == "" {
		return nil, errors.New("subscription event missing subscription_id")
	}
	return &ev, nil
}

// ParseOrderEvent decodes an order.* payload.
func ParseOrderEvent(payload json.RawMessage) (*OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.OrderID) == "" {
		return nil, errors.New("order event missing order_id")
	}
	return &ev, nil
}

// IsSubscriptionEvent reports whether the event routes through the lifecycle
// state machine.
func IsSubscriptionEvent(event string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(event)), "subscription.")
}
