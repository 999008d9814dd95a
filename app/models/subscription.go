package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Subscription lifecycle statuses. Rows are never deleted; terminal statuses
// are retained for proration and audit history.
const (
	SubStatusAuthenticated = "authenticated"
	SubStatusActive        = "active"
	SubStatusPastDue       = "past_due"
	SubStatusGracePeriod   = "grace_period"
	SubStatusExpired       = "expired"
	SubStatusCancelled     = "cancelled"
	SubStatusUpgraded      = "upgraded"
	SubStatusDowngraded    = "downgraded"
	SubStatusCompleted     = "completed"
)

// Scheduled change types applied at the current cycle's expiry.
const (
	ScheduledChangeUpgrade      = "upgrade"
	ScheduledChangeDowngrade    = "downgrade"
	ScheduledChangeCancellation = "cancellation"
)

// PlanSnapshot freezes the purchased plan's terms at purchase time so later
// catalog edits do not retroactively change existing subscribers.
type PlanSnapshot struct {
	Name              string `json:"name"`
	Tier              int    `json:"tier"`
	Type              string `json:"type"`
	StorageGB         int    `json:"storage_gb"`
	BlueTick          bool   `json:"blue_tick"`
	GoldTick          bool   `json:"gold_tick"`
	NoAds             bool   `json:"no_ads"`
	EngagementBoost   bool   `json:"engagement_boost"`
	BioLinksLimit     int    `json:"bio_links_limit"`
	CaptionLinksLimit int    `json:"caption_links_limit"`
	CustomTheme       bool   `json:"custom_theme"`
}

// Subscription is the authoritative record of a user's purchased plan. Status
// moves only through named lifecycle transitions, guarded by optimistic
// status-conditional updates.
type Subscription struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"not null;index" json:"user_id"`
	PlanID       uint   `gorm:"not null;index" json:"plan_id"`
	PlanType     string `gorm:"type:varchar(20);not null;default:'subscription';index" json:"plan_type"`
	PlanTier     int    `gorm:"not null;default:0" json:"plan_tier"`
	BillingCycle string `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Status       string `gorm:"type:varchar(32);not null;default:'authenticated';index" json:"status"`

	StartDate          *time.Time `gorm:"type:timestamp;default:null" json:"start_date,omitempty"`
	ExpiryDate         *time.Time `gorm:"type:timestamp;default:null;index" json:"expiry_date,omitempty"`
	GracePeriodEndDate *time.Time `gorm:"type:timestamp;default:null;index" json:"grace_period_end_date,omitempty"`
	AutoRenew          bool       `gorm:"default:true" json:"auto_renew"`

	// PricePaid is the amount actually charged for the current cycle, used by
	// the proration calculator on upgrades.
	PricePaid int64 `gorm:"not null;default:0" json:"price_paid"`

	ProviderSubscriptionID string `gorm:"type:varchar(191);default:'';index" json:"provider_subscription_id"`
	ProviderOrderID        string `gorm:"type:varchar(191);default:'';index" json:"provider_order_id"`
	// LastChargeID deduplicates redelivered charged events.
	LastChargeID string `gorm:"type:varchar(191);default:''" json:"-"`

	// Upgrade chain: the new row points at the row it superseded.
	PreviousSubscriptionID *uint `gorm:"default:null;index" json:"previous_subscription_id,omitempty"`

	ScheduledChangeType    string     `gorm:"type:varchar(20);default:''" json:"scheduled_change_type,omitempty"`
	ScheduledNewPlanID     *uint      `gorm:"default:null" json:"scheduled_new_plan_id,omitempty"`
	ScheduledEffectiveDate *time.Time `gorm:"type:timestamp;default:null" json:"scheduled_effective_date,omitempty"`

	PlanSnapshotJSON string `gorm:"type:text" json:"-"`

	// RemindersSent holds the expiry-reminder day offsets already delivered
	// (e.g. "7,3"), so sweeps stay at-most-once regardless of cadence.
	RemindersSent string `gorm:"type:varchar(32);default:''" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the subscription reached a final status.
func (s *Subscription) IsTerminal() bool {
	switch s.Status {
	case SubStatusExpired, SubStatusCancelled, SubStatusUpgraded, SubStatusDowngraded, SubStatusCompleted:
		return true
	default:
		return false
	}
}

// IsEntitling reports whether the row still grants entitlements at the given
// time. Status alone is not trusted: date bounds are re-verified so stale rows
// stop counting before the reconciliation sweep catches up.
func (s *Subscription) IsEntitling(now time.Time) bool {
	switch s.Status {
	case SubStatusGracePeriod:
		return s.GracePeriodEndDate != nil && now.Before(*s.GracePeriodEndDate)
	case SubStatusActive, SubStatusPastDue:
		return s.ExpiryDate == nil || now.Before(*s.ExpiryDate)
	default:
		return false
	}
}

// SetPlanSnapshot stores the purchased plan terms on the row.
func (s *Subscription) SetPlanSnapshot(p *Plan) error {
	snap := PlanSnapshot{
		Name:              p.Name,
		Tier:              p.Tier,
		Type:              p.Type,
		StorageGB:         p.StorageGB,
		BlueTick:          p.BlueTick,
		GoldTick:          p.GoldTick,
		NoAds:             p.NoAds,
		EngagementBoost:   p.EngagementBoost,
		BioLinksLimit:     p.BioLinksLimit,
		CaptionLinksLimit: p.CaptionLinksLimit,
		CustomTheme:       p.CustomTheme,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.PlanSnapshotJSON = string(data)
	return nil
}

// GetPlanSnapshot returns the stored snapshot, or nil when none was recorded.
func (s *Subscription) GetPlanSnapshot() *PlanSnapshot {
	if strings.TrimSpace(s.PlanSnapshotJSON) == "" {
		return nil
	}
	var snap PlanSnapshot
	if err := json.Unmarshal([]byte(s.PlanSnapshotJSON), &snap); err != nil {
		return nil
	}
	return &snap
}

// HasReminderSent reports whether the reminder for the given day offset was
// already delivered.
func (s *Subscription) HasReminderSent(daysOut int) bool {
	for _, part := range strings.Split(s.RemindersSent, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n == daysOut {
			return true
		}
	}
	return false
}

// MarkReminderSent records a delivered reminder offset.
func (s *Subscription) MarkReminderSent(daysOut int) {
	if s.HasReminderSent(daysOut) {
		return
	}
	if s.RemindersSent == "" {
		s.RemindersSent = strconv.Itoa(daysOut)
		return
	}
	s.RemindersSent += "," + strconv.Itoa(daysOut)
}
