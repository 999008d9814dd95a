package entitlements

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ripple-social/ripple/internal/pkg/cache"
)

// SnapshotTTL bounds how stale the advisory Redis snapshot may get before a
// reader falls back to a fresh resolve.
const SnapshotTTL = 15 * time.Minute

func snapshotKey(userID uint) string {
	return fmt.Sprintf("entitlements:%d", userID)
}

// StoreSnapshot writes the resolved entitlements to Redis. The snapshot is
// advisory only; last-write-wins is tolerated.
func StoreSnapshot(userID uint, ents Entitlements) error {
	data, err := json.Marshal(ents)
	if err != nil {
		return err
	}
	return cache.Set(snapshotKey(userID), string(data), SnapshotTTL)
}

// GetSnapshot reads the cached entitlements; ok=false means resolve fresh.
func GetSnapshot(userID uint) (Entitlements, bool) {
	raw, err := cache.Get(snapshotKey(userID))
	if err != nil {
		return Entitlements{}, false
	}
	var ents Entitlements
	if err := json.Unmarshal([]byte(raw), &ents); err != nil {
		return Entitlements{}, false
	}
	return ents, true
}

// InvalidateSnapshot drops the cached entry after a lifecycle transition.
func InvalidateSnapshot(userID uint) {
	_ = cache.Delete(snapshotKey(userID))
}
