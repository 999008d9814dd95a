package models

import "time"

const (
	PlanTypeSubscription = "subscription"
	PlanTypeStorageAddon = "storage_addon"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// Plan is a catalog entry for a purchasable tier or storage addon. Prices are
// integer amounts in the smallest currency unit. The catalog is read-only at
// entitlement-resolution time; purchased terms are snapshotted onto the
// Subscription row.
type Plan struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	Name               string `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Tier               int    `gorm:"not null;default:0;index" json:"tier"`
	Type               string `gorm:"type:varchar(20);not null;default:'subscription';index" json:"type"`
	Price              int64  `gorm:"not null;default:0" json:"price"`
	PriceYearly        int64  `gorm:"not null;default:0" json:"price_yearly"`
	DurationDays       int    `gorm:"not null;default:30" json:"duration_days"`
	DurationDaysYearly int    `gorm:"not null;default:365" json:"duration_days_yearly"`
	StorageGB          int    `gorm:"not null;default:0" json:"storage_gb"`
	BlueTick           bool   `gorm:"default:false" json:"blue_tick"`
	GoldTick           bool   `gorm:"default:false" json:"gold_tick"`
	NoAds              bool   `gorm:"default:false" json:"no_ads"`
	EngagementBoost    bool   `gorm:"default:false" json:"engagement_boost"`
	BioLinksLimit      int    `gorm:"default:1" json:"bio_links_limit"`
	CaptionLinksLimit  int    `gorm:"default:0" json:"caption_links_limit"`
	CustomTheme        bool   `gorm:"default:false" json:"custom_theme"`
	// Cached provider-side plan references; cleared when the provider reports
	// them stale, re-created on the next purchase.
	ProviderPlanRef       string    `gorm:"type:varchar(191);default:''" json:"-"`
	ProviderPlanRefYearly string    `gorm:"type:varchar(191);default:''" json:"-"`
	IsActive              bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PriceFor returns the price for the given billing cycle.
func (p *Plan) PriceFor(cycle string) int64 {
	if cycle == BillingCycleYearly {
		return p.PriceYearly
	}
	return p.Price
}

// DurationFor returns the cycle length for the given billing cycle.
func (p *Plan) DurationFor(cycle string) time.Duration {
	days := p.DurationDays
	if cycle == BillingCycleYearly {
		days = p.DurationDaysYearly
	}
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// ProviderRefFor returns the cached provider plan reference for a cycle.
func (p *Plan) ProviderRefFor(cycle string) string {
	if cycle == BillingCycleYearly {
		return p.ProviderPlanRefYearly
	}
	return p.ProviderPlanRef
}
