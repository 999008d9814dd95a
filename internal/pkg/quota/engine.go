// Package quota keeps a user's physical storage usage consistent with their
// resolved storage entitlement, locking the newest private content first when
// usage exceeds a reduced limit.
package quota

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/ripple-social/ripple/app/models"
	"github.com/ripple-social/ripple/internal/pkg/entitlements"
)

// ContentStore is the lock-state surface the engine needs from the content
// subsystem.
type ContentStore interface {
	SumPrivateBytes(ownerID uint) (int64, error)
	ListPrivateNewestFirst(ownerID uint) ([]models.ContentItem, error)
	LockItems(ids []uint, reason string, lockedAt time.Time) error
	UnlockAllByOwner(ownerID uint) (int64, error)
}

// EntitlementSource resolves a user's current storage allowance.
type EntitlementSource interface {
	Resolve(userID uint) (entitlements.Entitlements, error)
}

// Engine compares live usage to resolved entitlements and selects, locks and
// unlocks content. Concurrent uploads during a sweep may leave the lock set
// off by one item; the next sweep corrects it (eventual, not linearizable).
type Engine struct {
	content ContentStore
	ents    EntitlementSource
}

// NewEngine creates a quota engine from injected collaborators.
func NewEngine(content ContentStore, ents EntitlementSource) *Engine {
	return &Engine{content: content, ents: ents}
}

// Usage is the structured quota answer returned to callers so they can render
// an upgrade prompt instead of a bare failure.
type Usage struct {
	UsedBytes      int64 `json:"used_bytes"`
	LimitBytes     int64 `json:"limit_bytes"`
	RemainingBytes int64 `json:"remaining_bytes"`
	Allowed        bool  `json:"allowed"`
}

// UsedBytes returns the live sum of private content sizes for the user.
func (e *Engine) UsedBytes(userID uint) (int64, error) {
	return e.content.SumPrivateBytes(userID)
}

// CheckQuota reports whether incomingBytes fits inside the user's remaining
// allowance. Allowed exactly when used+incoming <= limit.
func (e *Engine) CheckQuota(userID uint, incomingBytes int64) (Usage, error) {
	used, err := e.content.SumPrivateBytes(userID)
	if err != nil {
		return Usage{}, err
	}
	ents, err := e.ents.Resolve(userID)
	if err != nil {
		return Usage{}, err
	}
	limit := ents.StorageLimitBytes()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		UsedBytes:      used,
		LimitBytes:     limit,
		RemainingBytes: remaining,
		Allowed:        used+incomingBytes <= limit,
	}, nil
}

// PlanLocking selects the lock set for a reduced limit: newest private items
// first, accumulated until the cumulative size covers the excess. Returns nil
// when usage already fits.
func (e *Engine) PlanLocking(userID uint, limitGB int) ([]models.ContentItem, error) {
	used, err := e.content.SumPrivateBytes(userID)
	if err != nil {
		return nil, err
	}
	limit := int64(limitGB) * entitlements.BytesPerGB
	if used <= limit {
		return nil, nil
	}
	excess := used - limit

	items, err := e.content.ListPrivateNewestFirst(userID)
	if err != nil {
		return nil, err
	}

	var lockSet []models.ContentItem
	var covered int64
	for _, item := range items {
		if covered >= excess {
			break
		}
		lockSet = append(lockSet, item)
		covered += item.FileSizeBytes
	}
	return lockSet, nil
}

// ApplyLocking flips the lock fields on every selected item in one atomic
// batch.
func (e *Engine) ApplyLocking(items []models.ContentItem, reason string) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return e.content.LockItems(ids, reason, time.Now())
}

// UnlockAll clears the lock fields on every currently locked item owned by
// the user; called after any entitlement increase.
func (e *Engine) UnlockAll(userID uint) (int64, error) {
	return e.content.UnlockAllByOwner(userID)
}

// RecheckAndLock resolves the current storage entitlement and locks whatever
// no longer fits. Returns the number of items locked.
func (e *Engine) RecheckAndLock(userID uint, reason string) (int, error) {
	ents, err := e.ents.Resolve(userID)
	if err != nil {
		return 0, err
	}
	lockSet, err := e.PlanLocking(userID, ents.StorageGB)
	if err != nil {
		return 0, err
	}
	if len(lockSet) == 0 {
		return 0, nil
	}
	if err := e.ApplyLocking(lockSet, reason); err != nil {
		return 0, err
	}
	log.Infof("[Quota] Locked %d items for user %d (limit %d GB)", len(lockSet), userID, ents.StorageGB)
	return len(lockSet), nil
}
