package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_IsTerminal(t *testing.T) {
	terminal := []string{SubStatusExpired, SubStatusCancelled, SubStatusUpgraded, SubStatusDowngraded, SubStatusCompleted}
	for _, status := range terminal {
		assert.True(t, (&Subscription{Status: status}).IsTerminal(), status)
	}
	live := []string{SubStatusAuthenticated, SubStatusActive, SubStatusPastDue, SubStatusGracePeriod}
	for _, status := range live {
		assert.False(t, (&Subscription{Status: status}).IsTerminal(), status)
	}
}

func TestSubscription_PlanSnapshotRoundTrip(t *testing.T) {
	plan := &Plan{Name: "premium", Tier: 2, Type: PlanTypeSubscription, StorageGB: 100, GoldTick: true, BioLinksLimit: 5}
	sub := &Subscription{}
	require.NoError(t, sub.SetPlanSnapshot(plan))

	snap := sub.GetPlanSnapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "premium", snap.Name)
	assert.Equal(t, 2, snap.Tier)
	assert.Equal(t, 100, snap.StorageGB)
	assert.True(t, snap.GoldTick)
}

func TestSubscription_GetPlanSnapshot_Invalid(t *testing.T) {
	assert.Nil(t, (&Subscription{}).GetPlanSnapshot())
	assert.Nil(t, (&Subscription{PlanSnapshotJSON: "not json"}).GetPlanSnapshot())
}

func TestSubscription_ReminderMarkers(t *testing.T) {
	sub := &Subscription{}
	assert.False(t, sub.HasReminderSent(7))

	sub.MarkReminderSent(7)
	sub.MarkReminderSent(3)
	sub.MarkReminderSent(7) // idempotent

	assert.Equal(t, "7,3", sub.RemindersSent)
	assert.True(t, sub.HasReminderSent(7))
	assert.True(t, sub.HasReminderSent(3))
	assert.False(t, sub.HasReminderSent(1))
}

func TestBackgroundJob_IsRetryable(t *testing.T) {
	job := &BackgroundJob{Status: JobStatusProcessing, Attempts: 1, MaxAttempts: 3}
	assert.True(t, job.IsRetryable())

	job.Attempts = 2
	assert.True(t, job.IsRetryable())

	job.Attempts = 3
	assert.False(t, job.IsRetryable())
}

func TestPlan_CycleHelpers(t *testing.T) {
	plan := &Plan{Price: 9900, PriceYearly: 99000, DurationDays: 30, DurationDaysYearly: 365, ProviderPlanRef: "m", ProviderPlanRefYearly: "y"}

	assert.Equal(t, int64(9900), plan.PriceFor(BillingCycleMonthly))
	assert.Equal(t, int64(99000), plan.PriceFor(BillingCycleYearly))
	assert.Equal(t, 30*24*time.Hour, plan.DurationFor(BillingCycleMonthly))
	assert.Equal(t, 365*24*time.Hour, plan.DurationFor(BillingCycleYearly))
	assert.Equal(t, "m", plan.ProviderRefFor(BillingCycleMonthly))
	assert.Equal(t, "y", plan.ProviderRefFor(BillingCycleYearly))
}
