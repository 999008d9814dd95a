package entitlements

import (
	"time"

	"github.com/ripple-social/ripple/app/models"
)

// EntitlingStatuses are the statuses the active-set filter selects. past_due
// rows are still inside their paid cycle and keep their entitlements until the
// cycle date bounds say otherwise.
var EntitlingStatuses = []string{
	models.SubStatusActive,
	models.SubStatusPastDue,
	models.SubStatusGracePeriod,
}

// SubscriptionSource is the slice of the subscription repository the resolver
// needs.
type SubscriptionSource interface {
	ListByUserWithStatuses(userID uint, statuses []string) ([]models.Subscription, error)
}

// PlanSource is the slice of the plan repository the resolver needs.
type PlanSource interface {
	GetByID(id uint) (*models.Plan, error)
}

// Resolver loads a user's subscription rows and resolves entitlements.
type Resolver struct {
	subs  SubscriptionSource
	plans PlanSource
}

// NewResolver creates a resolver from injected sources.
func NewResolver(subs SubscriptionSource, plans PlanSource) *Resolver {
	return &Resolver{subs: subs, plans: plans}
}

// ActiveSubscriptions returns the user's entitling rows, re-verified against
// now.
func (r *Resolver) ActiveSubscriptions(userID uint) ([]models.Subscription, error) {
	rows, err := r.subs.ListByUserWithStatuses(userID, EntitlingStatuses)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	active := rows[:0]
	for _, sub := range rows {
		if sub.IsEntitling(now) {
			active = append(active, sub)
		}
	}
	return active, nil
}

// Resolve computes the user's effective entitlements from the store.
func (r *Resolver) Resolve(userID uint) (Entitlements, error) {
	rows, err := r.subs.ListByUserWithStatuses(userID, EntitlingStatuses)
	if err != nil {
		return Entitlements{}, err
	}
	lookup := func(planID uint) (*models.Plan, bool) {
		plan, err := r.plans.GetByID(planID)
		if err != nil {
			return nil, false
		}
		return plan, true
	}
	return Resolve(rows, lookup, time.Now()), nil
}
