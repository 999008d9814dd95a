package models

import "time"

// User carries the fields the entitlement engine needs. Profile, auth and
// social data live in the user service.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"type:varchar(100);not null;uniqueIndex" json:"username"`
	Email    string `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	// ProviderCustomerID caches the billing provider's customer id. It is
	// cleared when the provider reports it stale and re-created on the next
	// purchase attempt.
	ProviderCustomerID string    `gorm:"type:varchar(191);default:'';index" json:"-"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
