package models

import (
	"encoding/json"
	"time"
)

// Background job statuses.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const JobDefaultMaxAttempts = 3

// Background job types carried by the queue.
const (
	JobTypeProcessWebhookEvent = "process_webhook_event"
	JobTypeRefreshEntitlements = "refresh_entitlements"
	JobTypeRecheckAndLock      = "recheck_and_lock"
	JobTypeUnlockContent       = "unlock_content"
	JobTypeEndOfSubscription   = "end_of_subscription"
	JobTypeApplyDowngrade      = "apply_scheduled_downgrade"
	JobTypeNotification        = "notification"
)

// BackgroundJob is a durable unit of asynchronous work. Workers claim rows by
// a conditional status update carrying their worker id and a lease expiry, so
// multiple worker processes never double-process the same job.
type BackgroundJob struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Type        string `gorm:"type:varchar(50);not null;index:idx_background_jobs_status_type,priority:2" json:"type"`
	PayloadJSON string `gorm:"type:text" json:"payload_json"`
	Status      string `gorm:"type:varchar(20);not null;default:'pending';index:idx_background_jobs_status_type,priority:1" json:"status"`
	Attempts    int    `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int    `gorm:"not null;default:3" json:"max_attempts"`
	LastError   string `gorm:"type:text" json:"last_error,omitempty"`

	WorkerID       string     `gorm:"type:varchar(64);default:''" json:"worker_id,omitempty"`
	LeaseExpiresAt *time.Time `gorm:"type:timestamp;default:null;index" json:"lease_expires_at,omitempty"`

	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
}

// Payload decodes the job payload into a generic map.
func (j *BackgroundJob) Payload() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if j.PayloadJSON == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(j.PayloadJSON), &out)
	return out, err
}

// SetPayload encodes a generic map as the job payload.
func (j *BackgroundJob) SetPayload(payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	j.PayloadJSON = string(data)
	return nil
}

// IsRetryable reports whether a failed attempt may be retried.
func (j *BackgroundJob) IsRetryable() bool {
	return j.Attempts < j.MaxAttempts
}
