package repository

import (
	"time"

	"github.com/ripple-social/ripple/app/models"
	"gorm.io/gorm"
)

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a content repository backed by GORM.
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

// SumPrivateBytes computes live usage from the rows themselves; usage is never
// tracked as a separately maintained counter.
func (r *contentRepository) SumPrivateBytes(ownerID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.ContentItem{}).
		Where("owner_id = ? AND is_private = ?", ownerID, true).
		Select("COALESCE(SUM(file_size_bytes), 0)").
		Scan(&total).Error
	return total, err
}

func (r *contentRepository) ListPrivateNewestFirst(ownerID uint) ([]models.ContentItem, error) {
	var items []models.ContentItem
	err := r.db.Where("owner_id = ? AND is_private = ?", ownerID, true).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	return items, err
}

func (r *contentRepository) LockItems(ids []uint, reason string, lockedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	// All-or-nothing: a failure must not leave the set partially locked.
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.ContentItem{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"is_locked":   true,
				"locked_at":   lockedAt,
				"lock_reason": reason,
			}).Error
	})
}

func (r *contentRepository) UnlockAllByOwner(ownerID uint) (int64, error) {
	var unlocked int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ContentItem{}).
			Where("owner_id = ? AND is_locked = ?", ownerID, true).
			Updates(map[string]interface{}{
				"is_locked":   false,
				"locked_at":   nil,
				"lock_reason": "",
			})
		if res.Error != nil {
			return res.Error
		}
		unlocked = res.RowsAffected
		return nil
	})
	return unlocked, err
}
