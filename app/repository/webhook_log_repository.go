package repository

import (
	"time"

	"github.com/ripple-social/ripple/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a webhook audit-log repository backed by GORM.
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

func (r *webhookLogRepository) CreateIfNotExists(log *models.WebhookLog) (bool, *models.WebhookLog, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(log)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookLog
	if err := r.db.Where("provider_event_id = ?", log.ProviderEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *webhookLogRepository) GetByID(id uint) (*models.WebhookLog, error) {
	var log models.WebhookLog
	if err := r.db.First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *webhookLogRepository) MarkProcessed(id uint, processingError string) error {
	now := time.Now()
	status := models.WebhookStatusProcessed
	if processingError != "" {
		status = models.WebhookStatusFailed
	}
	return r.db.Model(&models.WebhookLog{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           status,
			"processed_at":     &now,
			"processing_error": processingError,
		}).Error
}

func (r *webhookLogRepository) ListRecent(limit int) ([]models.WebhookLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.WebhookLog
	err := r.db.Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
