package entitlements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripple-social/ripple/app/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func future(days int) *time.Time {
	t := testNow.Add(time.Duration(days) * 24 * time.Hour)
	return &t
}

func past(days int) *time.Time {
	t := testNow.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func activeSub(id, planID uint, plan *models.Plan) models.Subscription {
	sub := models.Subscription{
		ID:         id,
		PlanID:     planID,
		PlanType:   plan.Type,
		PlanTier:   plan.Tier,
		Status:     models.SubStatusActive,
		StartDate:  past(10),
		ExpiryDate: future(20),
	}
	if err := sub.SetPlanSnapshot(plan); err != nil {
		panic(err)
	}
	return sub
}

func testCatalog() map[uint]*models.Plan {
	return map[uint]*models.Plan{
		1: {ID: 1, Name: "basic", Tier: 1, Type: models.PlanTypeSubscription, StorageGB: 50, BlueTick: true, NoAds: true, BioLinksLimit: 3, CaptionLinksLimit: 1},
		2: {ID: 2, Name: "premium", Tier: 2, Type: models.PlanTypeSubscription, StorageGB: 100, BlueTick: true, GoldTick: true, NoAds: true, EngagementBoost: true, BioLinksLimit: 5, CaptionLinksLimit: 3, CustomTheme: true},
		3: {ID: 3, Name: "storage-100", Type: models.PlanTypeStorageAddon, StorageGB: 100},
		4: {ID: 4, Name: "storage-500", Type: models.PlanTypeStorageAddon, StorageGB: 500},
	}
}

func catalogLookup(catalog map[uint]*models.Plan) PlanLookup {
	return func(planID uint) (*models.Plan, bool) {
		plan, ok := catalog[planID]
		return plan, ok
	}
}

func TestResolve_NoSubscriptions(t *testing.T) {
	ents := Resolve(nil, catalogLookup(testCatalog()), testNow)

	assert.Equal(t, 0, ents.SubscriptionTier)
	assert.Equal(t, "free", ents.SubscriptionName)
	assert.Equal(t, FreeTierStorageGB, ents.StorageGB)
	assert.Equal(t, FreeBioLinksLimit, ents.BioLinksLimit)
	assert.False(t, ents.BlueTick)
	assert.Empty(t, ents.ActiveSubscriptionIDs)
}

func TestResolve_SingleSubscription(t *testing.T) {
	catalog := testCatalog()
	subs := []models.Subscription{activeSub(10, 1, catalog[1])}

	ents := Resolve(subs, catalogLookup(catalog), testNow)

	assert.Equal(t, 1, ents.SubscriptionTier)
	assert.Equal(t, "basic", ents.SubscriptionName)
	assert.Equal(t, FreeTierStorageGB+50, ents.StorageGB)
	assert.True(t, ents.BlueTick)
	assert.False(t, ents.GoldTick)
	assert.Equal(t, 3, ents.BioLinksLimit)
	require.NotNil(t, ents.ExpiryDate)
	assert.Equal(t, []uint{10}, ents.ActiveSubscriptionIDs)
}

func TestResolve_HighestTierWins(t *testing.T) {
	// A not-yet-reconciled overlap: basic and premium both counting. Premium's
	// features apply; basic contributes nothing on top.
	catalog := testCatalog()
	subs := []models.Subscription{
		activeSub(10, 1, catalog[1]),
		activeSub(11, 2, catalog[2]),
	}

	ents := Resolve(subs, catalogLookup(catalog), testNow)

	assert.Equal(t, 2, ents.SubscriptionTier)
	assert.Equal(t, "premium", ents.SubscriptionName)
	assert.Equal(t, FreeTierStorageGB+100, ents.StorageGB)
	assert.True(t, ents.GoldTick)
	assert.True(t, ents.CustomTheme)
	assert.Equal(t, 5, ents.BioLinksLimit)
	assert.Len(t, ents.ActiveSubscriptionIDs, 2)
}

func TestResolve_StorageAddonsStack(t *testing.T) {
	catalog := testCatalog()
	subs := []models.Subscription{
		activeSub(10, 1, catalog[1]),
		activeSub(20, 3, catalog[3]),
		activeSub(21, 4, catalog[4]),
	}

	ents := Resolve(subs, catalogLookup(catalog), testNow)

	assert.Equal(t, FreeTierStorageGB+50+100+500, ents.StorageGB)
	// Addons never grant feature flags.
	assert.Equal(t, 1, ents.SubscriptionTier)
	assert.False(t, ents.GoldTick)
}

func TestResolve_AddonOnlyKeepsFreeFeatures(t *testing.T) {
	catalog := testCatalog()
	subs := []models.Subscription{activeSub(20, 3, catalog[3])}

	ents := Resolve(subs, catalogLookup(catalog), testNow)

	assert.Equal(t, 0, ents.SubscriptionTier)
	assert.Equal(t, "free", ents.SubscriptionName)
	assert.Equal(t, FreeTierStorageGB+100, ents.StorageGB)
	assert.False(t, ents.BlueTick)
}

func TestResolve_StatusFiltering(t *testing.T) {
	catalog := testCatalog()

	tests := []struct {
		name      string
		status    string
		expiry    *time.Time
		graceEnd  *time.Time
		entitling bool
	}{
		{"active counts", models.SubStatusActive, future(10), nil, true},
		{"past_due still counts inside cycle", models.SubStatusPastDue, future(10), nil, true},
		{"grace period counts until grace end", models.SubStatusGracePeriod, past(1), future(2), true},
		{"grace period stops at grace end", models.SubStatusGracePeriod, past(5), past(1), false},
		{"active past expiry stops counting", models.SubStatusActive, past(1), nil, false},
		{"authenticated never counts", models.SubStatusAuthenticated, future(10), nil, false},
		{"expired never counts", models.SubStatusExpired, future(10), nil, false},
		{"cancelled never counts", models.SubStatusCancelled, future(10), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := activeSub(10, 1, catalog[1])
			sub.Status = tt.status
			sub.ExpiryDate = tt.expiry
			sub.GracePeriodEndDate = tt.graceEnd

			ents := Resolve([]models.Subscription{sub}, catalogLookup(catalog), testNow)
			if tt.entitling {
				assert.Equal(t, 1, ents.SubscriptionTier)
			} else {
				assert.Equal(t, 0, ents.SubscriptionTier)
				assert.Equal(t, FreeTierStorageGB, ents.StorageGB)
			}
		})
	}
}

func TestResolve_SnapshotBeatsLiveCatalog(t *testing.T) {
	// The catalog changed after purchase; the frozen terms still apply.
	catalog := testCatalog()
	sub := activeSub(10, 1, catalog[1])
	catalog[1].StorageGB = 5
	catalog[1].BlueTick = false

	ents := Resolve([]models.Subscription{sub}, catalogLookup(catalog), testNow)

	assert.Equal(t, FreeTierStorageGB+50, ents.StorageGB)
	assert.True(t, ents.BlueTick)
}

func TestResolve_MissingSnapshotFallsBackToCatalog(t *testing.T) {
	catalog := testCatalog()
	sub := activeSub(10, 1, catalog[1])
	sub.PlanSnapshotJSON = ""

	ents := Resolve([]models.Subscription{sub}, catalogLookup(catalog), testNow)

	assert.Equal(t, 1, ents.SubscriptionTier)
	assert.Equal(t, FreeTierStorageGB+50, ents.StorageGB)
}

func TestResolve_MissingPlanSkipped(t *testing.T) {
	sub := models.Subscription{
		ID:         10,
		PlanID:     99,
		PlanType:   models.PlanTypeSubscription,
		Status:     models.SubStatusActive,
		ExpiryDate: future(10),
	}

	ents := Resolve([]models.Subscription{sub}, catalogLookup(testCatalog()), testNow)

	assert.Equal(t, FreeTier(), ents)
}

func TestResolve_Pure(t *testing.T) {
	catalog := testCatalog()
	subs := []models.Subscription{
		activeSub(10, 1, catalog[1]),
		activeSub(20, 3, catalog[3]),
	}
	lookup := catalogLookup(catalog)

	first := Resolve(subs, lookup, testNow)
	second := Resolve(subs, lookup, testNow)

	assert.Equal(t, first, second)
}

func TestStorageLimitBytes(t *testing.T) {
	ents := Entitlements{StorageGB: 2}
	assert.Equal(t, int64(2)<<30, ents.StorageLimitBytes())
}
