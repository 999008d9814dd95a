package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripple-social/ripple/app/models"
	"github.com/ripple-social/ripple/internal/pkg/entitlements"
)

const gb = entitlements.BytesPerGB

// fakeContentStore keeps private items newest-first, the way the repository
// returns them.
type fakeContentStore struct {
	items      []models.ContentItem
	lockedIDs  []uint
	lockReason string
	unlocked   bool
}

func (f *fakeContentStore) SumPrivateBytes(ownerID uint) (int64, error) {
	var sum int64
	for _, item := range f.items {
		sum += item.FileSizeBytes
	}
	return sum, nil
}

func (f *fakeContentStore) ListPrivateNewestFirst(ownerID uint) ([]models.ContentItem, error) {
	return f.items, nil
}

func (f *fakeContentStore) LockItems(ids []uint, reason string, lockedAt time.Time) error {
	f.lockedIDs = append(f.lockedIDs, ids...)
	f.lockReason = reason
	return nil
}

func (f *fakeContentStore) UnlockAllByOwner(ownerID uint) (int64, error) {
	f.unlocked = true
	return int64(len(f.lockedIDs)), nil
}

type fakeEntitlements struct {
	storageGB int
}

func (f *fakeEntitlements) Resolve(userID uint) (entitlements.Entitlements, error) {
	return entitlements.Entitlements{StorageGB: f.storageGB}, nil
}

// newestFirst builds items with descending creation time; sizes are in GB and
// the first element is the newest.
func newestFirst(sizesGB ...int) []models.ContentItem {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	items := make([]models.ContentItem, 0, len(sizesGB))
	for i, size := range sizesGB {
		items = append(items, models.ContentItem{
			ID:            uint(i + 1),
			OwnerID:       1,
			IsPrivate:     true,
			FileSizeBytes: int64(size) * gb,
			CreatedAt:     base.Add(-time.Duration(i) * time.Hour),
		})
	}
	return items
}

func TestCheckQuota(t *testing.T) {
	tests := []struct {
		name     string
		usedGB   []int
		limitGB  int
		incoming int64
		allowed  bool
	}{
		{"fits comfortably", []int{10}, 50, 5 * gb, true},
		{"fills exactly to limit", []int{40}, 50, 10 * gb, true},
		{"one byte over", []int{40}, 50, 10*gb + 1, false},
		{"already over limit", []int{60}, 50, 1, false},
		{"zero incoming reports state", []int{10}, 50, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&fakeContentStore{items: newestFirst(tt.usedGB...)}, &fakeEntitlements{storageGB: tt.limitGB})

			usage, err := engine.CheckQuota(1, tt.incoming)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, usage.Allowed)
			assert.Equal(t, int64(tt.limitGB)*gb, usage.LimitBytes)
		})
	}
}

func TestCheckQuota_RemainingNeverNegative(t *testing.T) {
	engine := NewEngine(&fakeContentStore{items: newestFirst(60)}, &fakeEntitlements{storageGB: 50})

	usage, err := engine.CheckQuota(1, 0)
	require.NoError(t, err)
	assert.Zero(t, usage.RemainingBytes)
}

func TestPlanLocking_UnderLimit(t *testing.T) {
	engine := NewEngine(&fakeContentStore{items: newestFirst(10, 20)}, &fakeEntitlements{storageGB: 50})

	lockSet, err := engine.PlanLocking(1, 50)
	require.NoError(t, err)
	assert.Empty(t, lockSet)
}

func TestPlanLocking_NewestFirstMinimalCover(t *testing.T) {
	// 60 GB used against 35 GB limit: excess 25 GB. The newest item alone
	// (30 GB) covers it; older items stay untouched.
	store := &fakeContentStore{items: newestFirst(30, 20, 10)}
	engine := NewEngine(store, &fakeEntitlements{storageGB: 35})

	lockSet, err := engine.PlanLocking(1, 35)
	require.NoError(t, err)
	require.Len(t, lockSet, 1)
	assert.Equal(t, uint(1), lockSet[0].ID)
}

func TestPlanLocking_AccumulatesUntilCovered(t *testing.T) {
	// Excess 25 GB, newest item is only 10 GB: locking continues into the
	// next-newest until the excess is covered.
	store := &fakeContentStore{items: newestFirst(10, 20, 30)}
	engine := NewEngine(store, &fakeEntitlements{storageGB: 35})

	lockSet, err := engine.PlanLocking(1, 35)
	require.NoError(t, err)
	require.Len(t, lockSet, 2)
	assert.Equal(t, uint(1), lockSet[0].ID)
	assert.Equal(t, uint(2), lockSet[1].ID)
}

func TestPlanLocking_LocksEverythingWhenNeeded(t *testing.T) {
	store := &fakeContentStore{items: newestFirst(10, 10, 10)}
	engine := NewEngine(store, &fakeEntitlements{storageGB: 0})

	lockSet, err := engine.PlanLocking(1, 0)
	require.NoError(t, err)
	assert.Len(t, lockSet, 3)
}

func TestRecheckAndLock(t *testing.T) {
	store := &fakeContentStore{items: newestFirst(30, 20, 10)}
	engine := NewEngine(store, &fakeEntitlements{storageGB: 35})

	locked, err := engine.RecheckAndLock(1, "downgrade")
	require.NoError(t, err)
	assert.Equal(t, 1, locked)
	assert.Equal(t, []uint{1}, store.lockedIDs)
	assert.Equal(t, "downgrade", store.lockReason)
}

func TestRecheckAndLock_NoopWhenWithinLimit(t *testing.T) {
	store := &fakeContentStore{items: newestFirst(10)}
	engine := NewEngine(store, &fakeEntitlements{storageGB: 50})

	locked, err := engine.RecheckAndLock(1, "downgrade")
	require.NoError(t, err)
	assert.Zero(t, locked)
	assert.Empty(t, store.lockedIDs)
}

func TestUnlockThenRecheckRoundTrip(t *testing.T) {
	// Shrink locks, grow unlocks, and a second recheck at the higher limit
	// locks nothing again.
	store := &fakeContentStore{items: newestFirst(30, 20, 10)}
	shrunk := NewEngine(store, &fakeEntitlements{storageGB: 35})

	locked, err := shrunk.RecheckAndLock(1, "downgrade")
	require.NoError(t, err)
	assert.Equal(t, 1, locked)

	grown := NewEngine(store, &fakeEntitlements{storageGB: 100})
	_, err = grown.UnlockAll(1)
	require.NoError(t, err)
	assert.True(t, store.unlocked)

	store.lockedIDs = nil
	relocked, err := grown.RecheckAndLock(1, "post_unlock_recheck")
	require.NoError(t, err)
	assert.Zero(t, relocked)
}
