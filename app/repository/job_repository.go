package repository

import (
	"time"

	"github.com/ripple-social/ripple/app/models"
	"gorm.io/gorm"
)

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a background-job repository backed by GORM.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Enqueue(job *models.BackgroundJob) error {
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = models.JobDefaultMaxAttempts
	}
	return r.db.Create(job).Error
}

func (r *jobRepository) GetByID(id uint) (*models.BackgroundJob, error) {
	var job models.BackgroundJob
	if err := r.db.First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimBatch selects candidate rows, then claims each with a single
// conditional update carrying the worker id and lease expiry. A row whose
// guarded update affects zero rows was taken by another worker and is skipped.
func (r *jobRepository) ClaimBatch(workerID string, limit int, lease time.Duration) ([]models.BackgroundJob, error) {
	now := time.Now()
	leaseUntil := now.Add(lease)

	var candidates []models.BackgroundJob
	err := r.db.
		Where("status = ? OR (status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?)",
			models.JobStatusPending, models.JobStatusProcessing, now).
		Order("id ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]models.BackgroundJob, 0, len(candidates))
	for _, job := range candidates {
		res := r.db.Model(&models.BackgroundJob{}).
			Where("id = ? AND (status = ? OR (status = ? AND lease_expires_at < ?))",
				job.ID, models.JobStatusPending, models.JobStatusProcessing, now).
			Updates(map[string]interface{}{
				"status":           models.JobStatusProcessing,
				"worker_id":        workerID,
				"lease_expires_at": leaseUntil,
			})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		job.Status = models.JobStatusProcessing
		job.WorkerID = workerID
		job.LeaseExpiresAt = &leaseUntil
		claimed = append(claimed, job)
	}
	return claimed, nil
}

func (r *jobRepository) MarkCompleted(id uint) error {
	now := time.Now()
	return r.db.Model(&models.BackgroundJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           models.JobStatusCompleted,
			"completed_at":     now,
			"worker_id":        "",
			"lease_expires_at": nil,
			"last_error":       "",
		}).Error
}

func (r *jobRepository) Requeue(id uint, attempts int, lastError string) error {
	return r.db.Model(&models.BackgroundJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           models.JobStatusPending,
			"attempts":         attempts,
			"last_error":       lastError,
			"worker_id":        "",
			"lease_expires_at": nil,
		}).Error
}

func (r *jobRepository) MarkFailed(id uint, attempts int, lastError string) error {
	return r.db.Model(&models.BackgroundJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           models.JobStatusFailed,
			"attempts":         attempts,
			"last_error":       lastError,
			"worker_id":        "",
			"lease_expires_at": nil,
		}).Error
}

func (r *jobRepository) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&models.BackgroundJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
