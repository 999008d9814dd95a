package repository

import (
	"time"

	"github.com/ripple-social/ripple/app/models"
	"gorm.io/gorm"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a subscription repository backed by GORM.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByProviderSubscriptionID(providerSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("provider_subscription_id = ?", providerSubID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByProviderOrderID(orderID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("provider_order_id = ?", orderID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *subscriptionRepository) UpdateStatusIf(id uint, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *subscriptionRepository) ListByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListByUserWithStatuses(userID uint, statuses []string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ? AND status IN ?", userID, statuses).Order("id ASC").Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) CountEntitlingSubscriptionType(userID uint, excludeID uint) (int64, error) {
	var count int64
	q := r.db.Model(&models.Subscription{}).
		Where("user_id = ? AND plan_type = ? AND status IN ?",
			userID, models.PlanTypeSubscription,
			[]string{models.SubStatusActive, models.SubStatusGracePeriod})
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count, err
}

func (r *subscriptionRepository) ListExpiredBefore(statuses []string, t time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status IN ? AND expiry_date IS NOT NULL AND expiry_date < ?", statuses, t).
		Order("expiry_date ASC").Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListGraceEndedBefore(t time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status = ? AND grace_period_end_date IS NOT NULL AND grace_period_end_date < ?",
		models.SubStatusGracePeriod, t).
		Order("grace_period_end_date ASC").Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListExpiringBetween(from, to time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status IN ? AND expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date < ?",
		[]string{models.SubStatusActive, models.SubStatusPastDue}, from, to).
		Order("expiry_date ASC").Find(&subs).Error
	return subs, err
}
