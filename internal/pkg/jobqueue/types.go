package jobqueue

import (
	"fmt"
)

// UserPayload targets jobs that operate on a single account (entitlement
// refresh, unlock sweep).
type UserPayload struct {
	UserID uint
}

// ToMap converts the payload for storage on a job row.
func (p *UserPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{"user_id": p.UserID}
}

// UserPayloadFromMap reconstructs the payload from a job row.
func UserPayloadFromMap(data map[string]interface{}) (*UserPayload, error) {
	id, err := uintField(data, "user_id")
	if err != nil {
		return nil, err
	}
	return &UserPayload{UserID: id}, nil
}

// QuotaPayload targets the lock sweep; reason lands on locked rows.
type QuotaPayload struct {
	UserID uint
	Reason string
}

func (p *QuotaPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{"user_id": p.UserID, "reason": p.Reason}
}

func QuotaPayloadFromMap(data map[string]interface{}) (*QuotaPayload, error) {
	id, err := uintField(data, "user_id")
	if err != nil {
		return nil, err
	}
	reason, _ := data["reason"].(string)
	return &QuotaPayload{UserID: id, Reason: reason}, nil
}

// SubscriptionPayload targets jobs that operate on one subscription row.
type SubscriptionPayload struct {
	SubscriptionID uint
	UserID         uint
}

func (p *SubscriptionPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"subscription_id": p.SubscriptionID,
		"user_id":         p.UserID,
	}
}

func SubscriptionPayloadFromMap(data map[string]interface{}) (*SubscriptionPayload, error) {
	subID, err := uintField(data, "subscription_id")
	if err != nil {
		return nil, err
	}
	userID, _ := uintField(data, "user_id")
	return &SubscriptionPayload{SubscriptionID: subID, UserID: userID}, nil
}

// WebhookPayload carries a recorded webhook event into async processing. The
// raw body travels with the job so processing does not depend on the audit
// row surviving.
type WebhookPayload struct {
	WebhookLogID uint
	Event        string
	RawBody      string
}

func (p *WebhookPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"webhook_log_id": p.WebhookLogID,
		"event":          p.Event,
		"raw_body":       p.RawBody,
	}
}

func WebhookPayloadFromMap(data map[string]interface{}) (*WebhookPayload, error) {
	logID, err := uintField(data, "webhook_log_id")
	if err != nil {
		return nil, err
	}
	event, _ := data["event"].(string)
	raw, _ := data["raw_body"].(string)
	if raw == "" {
		return nil, fmt.Errorf("webhook payload missing raw_body")
	}
	return &WebhookPayload{WebhookLogID: logID, Event: event, RawBody: raw}, nil
}

// NotificationPayload carries a user-facing message to the dispatcher.
type NotificationPayload struct {
	UserID uint
	Title  string
	Body   string
}

func (p *NotificationPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id": p.UserID,
		"title":   p.Title,
		"body":    p.Body,
	}
}

func NotificationPayloadFromMap(data map[string]interface{}) (*NotificationPayload, error) {
	id, err := uintField(data, "user_id")
	if err != nil {
		return nil, err
	}
	title, _ := data["title"].(string)
	body, _ := data["body"].(string)
	return &NotificationPayload{UserID: id, Title: title, Body: body}, nil
}

// uintField tolerates the numeric types JSON round-tripping produces.
func uintField(data map[string]interface{}, key string) (uint, error) {
	v, ok := data[key]
	if !ok {
		return 0, fmt.Errorf("payload missing %s", key)
	}
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("payload field %s is negative", key)
		}
		return uint(n), nil
	case int:
		return uint(n), nil
	case int64:
		return uint(n), nil
	case uint:
		return n, nil
	default:
		return 0, fmt.Errorf("payload field %s has unexpected type %T", key, v)
	}
}
