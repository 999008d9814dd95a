package models

import "time"

// Webhook log statuses. The log is an append-only audit trail used for replay
// and debugging; business logic never reads it.
const (
	WebhookStatusReceived  = "received"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)

// WebhookLog stores every inbound provider event with deduplication metadata.
type WebhookLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Event           string     `gorm:"type:varchar(100);not null;index" json:"event"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';uniqueIndex:uq_webhook_logs_provider_event_id" json:"provider_event_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Status          string     `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	ProcessingError string     `gorm:"type:text" json:"processing_error,omitempty"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
