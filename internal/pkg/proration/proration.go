// Package proration computes the remaining paid value of a subscription that
// is carried forward on a mid-cycle upgrade.
package proration

import "time"

// Credit returns the unused portion of pricePaid for the cycle bounded by
// startDate and expiryDate, evaluated at now: floor(price * remaining/total),
// never negative. Missing data or an already expired cycle yields 0.
func Credit(pricePaid int64, startDate, expiryDate *time.Time, now time.Time) int64 {
	if pricePaid <= 0 || startDate == nil || expiryDate == nil {
		return 0
	}
	total := expiryDate.Sub(*startDate)
	if total <= 0 {
		return 0
	}
	remaining := expiryDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if remaining > total {
		remaining = total
	}
	// Second resolution keeps price*remaining inside int64; nanoseconds
	// overflow for realistic minor-unit prices.
	totalSec := int64(total / time.Second)
	if totalSec <= 0 {
		return 0
	}
	remSec := int64(remaining / time.Second)
	// Integer math floors the credit in the user's favor on our side.
	credit := pricePaid * remSec / totalSec
	if credit < 0 {
		return 0
	}
	if credit > pricePaid {
		return pricePaid
	}
	return credit
}

// UpgradeCharge returns the one-off amount due when moving to a plan priced at
// newPlanPrice with the given proration credit.
func UpgradeCharge(newPlanPrice, credit int64) int64 {
	due := newPlanPrice - credit
	if due < 0 {
		return 0
	}
	return due
}
