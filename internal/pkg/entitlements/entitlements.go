package entitlements

import (
	"time"

	"github.com/ripple-social/ripple/app/models"
)

// Free-tier defaults applied before any subscription contributes.
const (
	FreeTierStorageGB     = 15
	FreeBioLinksLimit     = 1
	FreeCaptionLinksLimit = 0
)

// BytesPerGB is the storage unit used for quota math (1 GiB).
const BytesPerGB = int64(1) << 30

// Entitlements is the resolved capability set for a user. It is derived and
// cacheable but never authoritative: it must be fully recomputable from the
// current Subscription+Plan set alone.
type Entitlements struct {
	SubscriptionTier      int        `json:"subscription_tier"`
	SubscriptionName      string     `json:"subscription_name"`
	StorageGB             int        `json:"storage_gb"`
	BlueTick              bool       `json:"blue_tick"`
	GoldTick              bool       `json:"gold_tick"`
	NoAds                 bool       `json:"no_ads"`
	EngagementBoost       bool       `json:"engagement_boost"`
	BioLinksLimit         int        `json:"bio_links_limit"`
	CaptionLinksLimit     int        `json:"caption_links_limit"`
	CustomTheme           bool       `json:"custom_theme"`
	ActiveSubscriptionIDs []uint     `json:"active_subscription_ids"`
	ExpiryDate            *time.Time `json:"expiry_date,omitempty"`
}

// FreeTier returns the baseline entitlements of a user with no purchases.
func FreeTier() Entitlements {
	return Entitlements{
		SubscriptionTier:  0,
		SubscriptionName:  "free",
		StorageGB:         FreeTierStorageGB,
		BioLinksLimit:     FreeBioLinksLimit,
		CaptionLinksLimit: FreeCaptionLinksLimit,
	}
}

// StorageLimitBytes converts the resolved storage allowance to bytes.
func (e Entitlements) StorageLimitBytes() int64 {
	return int64(e.StorageGB) * BytesPerGB
}

// PlanLookup resolves a plan id to its catalog row. A missing plan returns
// ok=false and is skipped, not fatal.
type PlanLookup func(planID uint) (*models.Plan, bool)

// Resolve folds a user's subscription rows into the effective capability set.
// Pure: deterministic for a fixed input set, no side effects, safe to call
// repeatedly. Rows are re-verified against now so stale statuses stop
// counting before the reconciliation sweep catches up.
//
// storage_addon rows contribute storage additively and unconditionally. Among
// subscription-type rows only the single highest tier determines feature
// flags, and its storage is added once.
func Resolve(subs []models.Subscription, lookup PlanLookup, now time.Time) Entitlements {
	result := FreeTier()

	var best *models.PlanSnapshot
	var bestSub *models.Subscription
	for i := range subs {
		sub := &subs[i]
		if !sub.IsEntitling(now) {
			continue
		}

		snap := planTerms(sub, lookup)
		if snap == nil {
			continue
		}

		switch snap.Type {
		case models.PlanTypeStorageAddon:
			result.StorageGB += snap.StorageGB
			result.ActiveSubscriptionIDs = append(result.ActiveSubscriptionIDs, sub.ID)
		case models.PlanTypeSubscription:
			result.ActiveSubscriptionIDs = append(result.ActiveSubscriptionIDs, sub.ID)
			if best == nil || snap.Tier > best.Tier {
				best = snap
				bestSub = sub
			}
		}
	}

	if best != nil {
		result.SubscriptionTier = best.Tier
		result.SubscriptionName = best.Name
		result.StorageGB += best.StorageGB
		result.BlueTick = best.BlueTick
		result.GoldTick = best.GoldTick
		result.NoAds = best.NoAds
		result.EngagementBoost = best.EngagementBoost
		result.CustomTheme = best.CustomTheme
		if best.BioLinksLimit > result.BioLinksLimit {
			result.BioLinksLimit = best.BioLinksLimit
		}
		if best.CaptionLinksLimit > result.CaptionLinksLimit {
			result.CaptionLinksLimit = best.CaptionLinksLimit
		}
		if bestSub.ExpiryDate != nil {
			expiry := *bestSub.ExpiryDate
			result.ExpiryDate = &expiry
		}
	}

	return result
}

// planTerms prefers the snapshot frozen at purchase time; rows created before
// snapshotting existed fall back to the live catalog.
func planTerms(sub *models.Subscription, lookup PlanLookup) *models.PlanSnapshot {
	if snap := sub.GetPlanSnapshot(); snap != nil {
		return snap
	}
	plan, ok := lookup(sub.PlanID)
	if !ok || plan == nil {
		return nil
	}
	return &models.PlanSnapshot{
		Name:              plan.Name,
		Tier:              plan.Tier,
		Type:              plan.Type,
		StorageGB:         plan.StorageGB,
		BlueTick:          plan.BlueTick,
		GoldTick:          plan.GoldTick,
		NoAds:             plan.NoAds,
		EngagementBoost:   plan.EngagementBoost,
		BioLinksLimit:     plan.BioLinksLimit,
		CaptionLinksLimit: plan.CaptionLinksLimit,
		CustomTheme:       plan.CustomTheme,
	}
}
