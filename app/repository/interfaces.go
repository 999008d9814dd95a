package repository

import (
	"time"

	"github.com/ripple-social/ripple/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	Update(user *models.User) error
	SetProviderCustomerID(userID uint, customerID string) error
	ClearProviderCustomerID(userID uint) error
}

// PlanRepository defines the interface for plan catalog operations
type PlanRepository interface {
	Create(plan *models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	GetByName(name string) (*models.Plan, error)
	GetActive() ([]models.Plan, error)
	Update(plan *models.Plan) error
	SetProviderPlanRef(planID uint, cycle, ref string) error
	ClearProviderPlanRef(planID uint, cycle string) error
}

// SubscriptionRepository defines the interface for subscription records.
// Rows are never deleted; terminal rows are kept for proration and audit.
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByProviderSubscriptionID(providerSubID string) (*models.Subscription, error)
	GetByProviderOrderID(orderID string) (*models.Subscription, error)
	Update(sub *models.Subscription) error
	// UpdateStatusIf applies updates only while the row still holds one of
	// fromStatuses; reports whether the transition won the race.
	UpdateStatusIf(id uint, fromStatuses []string, updates map[string]interface{}) (bool, error)
	ListByUser(userID uint) ([]models.Subscription, error)
	ListByUserWithStatuses(userID uint, statuses []string) ([]models.Subscription, error)
	// CountEntitlingSubscriptionType counts subscription-type (non-addon) rows
	// in active/grace states for the single-active invariant check.
	CountEntitlingSubscriptionType(userID uint, excludeID uint) (int64, error)
	ListExpiredBefore(statuses []string, t time.Time) ([]models.Subscription, error)
	ListGraceEndedBefore(t time.Time) ([]models.Subscription, error)
	ListExpiringBetween(from, to time.Time) ([]models.Subscription, error)
}

// ContentRepository defines the lock-state surface the quota engine is allowed
// to touch on the content subsystem's rows.
type ContentRepository interface {
	SumPrivateBytes(ownerID uint) (int64, error)
	ListPrivateNewestFirst(ownerID uint) ([]models.ContentItem, error)
	// LockItems flips the lock fields on every given row in one transaction.
	LockItems(ids []uint, reason string, lockedAt time.Time) error
	// UnlockAllByOwner clears lock fields on all locked rows of the owner in
	// one transaction and returns the number of rows unlocked.
	UnlockAllByOwner(ownerID uint) (int64, error)
}

// JobRepository defines the durable background-job queue storage.
type JobRepository interface {
	Enqueue(job *models.BackgroundJob) error
	GetByID(id uint) (*models.BackgroundJob, error)
	// ClaimBatch atomically claims up to limit pending (or lease-expired
	// processing) jobs for the given worker and returns them.
	ClaimBatch(workerID string, limit int, lease time.Duration) ([]models.BackgroundJob, error)
	MarkCompleted(id uint) error
	// Requeue records a failed attempt and returns the job to pending.
	Requeue(id uint, attempts int, lastError string) error
	// MarkFailed dead-letters a job that exhausted its attempts.
	MarkFailed(id uint, attempts int, lastError string) error
	CountByStatus() (map[string]int64, error)
}

// WebhookLogRepository defines the append-only webhook audit trail.
type WebhookLogRepository interface {
	// CreateIfNotExists appends the event unless its provider event id was
	// seen before; reports whether a new row was created.
	CreateIfNotExists(log *models.WebhookLog) (bool, *models.WebhookLog, error)
	GetByID(id uint) (*models.WebhookLog, error)
	MarkProcessed(id uint, processingError string) error
	ListRecent(limit int) ([]models.WebhookLog, error)
}
