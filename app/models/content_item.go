package models

import "time"

// ContentItem mirrors the rows owned by the external content subsystem. The
// quota engine only toggles the lock fields; it never creates, deletes or
// resizes content.
type ContentItem struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OwnerID       uint       `gorm:"not null;index" json:"owner_id"`
	IsPrivate     bool       `gorm:"default:false;index" json:"is_private"`
	FileSizeBytes int64      `gorm:"type:bigint;not null;default:0" json:"file_size_bytes"`
	IsLocked      bool       `gorm:"default:false;index" json:"is_locked"`
	LockedAt      *time.Time `gorm:"type:timestamp;default:null" json:"locked_at,omitempty"`
	LockReason    string     `gorm:"type:varchar(100);default:''" json:"lock_reason,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
