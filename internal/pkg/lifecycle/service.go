// Package lifecycle is the authoritative transition table for subscription
// status. Webhooks, the reconciliation sweep and admin operations all invoke
// the same named transitions; each transition's side effects exist in exactly
// one place.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/ripple-social/ripple/app/models"
	"github.com/ripple-social/ripple/app/repository"
	"github.com/ripple-social/ripple/internal/pkg/apperrors"
	"github.com/ripple-social/ripple/internal/pkg/billing"
	"github.com/ripple-social/ripple/internal/pkg/env"
	"github.com/ripple-social/ripple/internal/pkg/proration"
	"gorm.io/gorm"
)

// Enqueuer defers heavier follow-up work to the background job queue.
type Enqueuer interface {
	EnqueueJob(jobType string, payload map[string]interface{}) (*models.BackgroundJob, error)
}

// Service implements the lifecycle state machine over the subscription store
// and the billing provider.
type Service struct {
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	users    repository.UserRepository
	provider billing.Provider
	jobs     Enqueuer

	graceWindow time.Duration
	now         func() time.Time
}

// NewService creates a lifecycle service from injected collaborators.
func NewService(repos *repository.Repositories, provider billing.Provider, jobs Enqueuer, graceWindow time.Duration) *Service {
	if graceWindow <= 0 {
		graceWindow = 3 * 24 * time.Hour
	}
	return &Service{
		subs:        repos.Subscription,
		plans:       repos.Plan,
		users:       repos.User,
		provider:    provider,
		jobs:        jobs,
		graceWindow: graceWindow,
		now:         time.Now,
	}
}

// NewServiceFromDB creates a lifecycle service with the default grace window
// from the environment.
func NewServiceFromDB(db *gorm.DB, provider billing.Provider, jobs Enqueuer) *Service {
	days := 3
	if v := strings.TrimSpace(env.GetEnv("GRACE_PERIOD_DAYS", "")); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &days); err != nil || days <= 0 {
			days = 3
		}
	}
	return NewService(repository.NewRepositories(db), provider, jobs, time.Duration(days)*24*time.Hour)
}

// UpgradeOrder describes the one-off charge created for a mid-cycle upgrade.
type UpgradeOrder struct {
	OrderID           string `json:"order_id"`
	AmountDue         int64  `json:"amount_due"`
	Credit            int64  `json:"credit"`
	NewSubscriptionID uint   `json:"new_subscription_id"`
}

// Purchase starts a new recurring subscription: provider customer and mandate
// are created, the local row begins in authenticated and is not yet counted
// by the active-set filter.
func (s *Service) Purchase(ctx context.Context, userID, planID uint, cycle string) (*models.Subscription, error) {
	plan, err := s.activePlan(planID)
	if err != nil {
		return nil, err
	}
	if plan.Type == models.PlanTypeSubscription {
		if err := s.checkSingleActive(userID, 0); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
		}
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}
	planRef, err := s.ensurePlanRef(ctx, plan, cycle)
	if err != nil {
		return nil, err
	}

	providerSubID, err := s.provider.CreateSubscription(ctx, customerID, planRef)
	if err != nil {
		if errors.Is(err, billing.ErrProviderNotFound) {
			// Cached customer/plan id is stale on the provider side.
			return nil, s.RecoverStaleProviderRefs(user.ID, plan.ID, cycle)
		}
		return nil, apperrors.Provider(err, "could not create provider subscription")
	}

	return s.createAuthenticated(user.ID, plan, cycle, providerSubID, "", nil)
}

// Activate transitions a row to active on the provider's activated event.
// When the row is the successor of an upgrade, the superseded row is marked
// upgraded and an unlock sweep is enqueued.
func (s *Service) Activate(providerSubID string) error {
	sub, err := s.lookupByProviderID(providerSubID, "activated")
	if err != nil || sub == nil {
		return err
	}

	now := s.now()
	plan, _ := s.plans.GetByID(sub.PlanID)
	expiry := now.Add(cycleDuration(plan, sub.BillingCycle))

	ok, err := s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusAuthenticated, models.SubStatusPastDue},
		map[string]interface{}{
			"status":      models.SubStatusActive,
			"start_date":  now,
			"expiry_date": expiry,
		})
	if err != nil {
		return err
	}
	if !ok {
		log.Infof("[Lifecycle] activated for sub %d ignored (status=%s)", sub.ID, sub.Status)
		return nil
	}

	if sub.PreviousSubscriptionID != nil {
		if _, err := s.subs.UpdateStatusIf(*sub.PreviousSubscriptionID,
			[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod, models.SubStatusAuthenticated},
			map[string]interface{}{"status": models.SubStatusUpgraded}); err != nil {
			return err
		}
	}

	s.enqueueGrowth(sub.UserID)
	return nil
}

// Renew extends the cycle on a successful charge. Redelivered events are
// deduplicated by payment id. The new expiry is measured from now, not from
// the old expiry, matching what the provider actually charged for.
func (s *Service) Renew(providerSubID, paymentID string, amount int64) error {
	sub, err := s.lookupByProviderID(providerSubID, "charged")
	if err != nil || sub == nil {
		return err
	}
	if paymentID != "" && paymentID == sub.LastChargeID {
		log.Infof("[Lifecycle] duplicate charge %s for sub %d ignored", paymentID, sub.ID)
		return nil
	}

	now := s.now()
	plan, _ := s.plans.GetByID(sub.PlanID)
	expiry := now.Add(cycleDuration(plan, sub.BillingCycle))

	updates := map[string]interface{}{
		"status":                models.SubStatusActive,
		"expiry_date":           expiry,
		"grace_period_end_date": nil,
		"last_charge_id":        paymentID,
		"reminders_sent":        "",
	}
	if amount > 0 {
		updates["price_paid"] = amount
	}
	if sub.StartDate == nil {
		updates["start_date"] = now
	}

	ok, err := s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusAuthenticated, models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod},
		updates)
	if err != nil {
		return err
	}
	if !ok {
		log.Infof("[Lifecycle] charged for sub %d ignored (status=%s)", sub.ID, sub.Status)
		return nil
	}

	s.enqueueGrowth(sub.UserID)
	return nil
}

// MarkPastDue flags a pending renewal charge. The row is still inside its
// paid cycle, so entitlements are unchanged and no lock sweep is enqueued.
func (s *Service) MarkPastDue(providerSubID string) error {
	sub, err := s.lookupByProviderID(providerSubID, "pending")
	if err != nil || sub == nil {
		return err
	}
	_, err = s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusActive},
		map[string]interface{}{"status": models.SubStatusPastDue})
	return err
}

// Halt moves a subscription whose renewal retries are exhausted into the
// grace period. Entitlements still count until the grace window ends.
func (s *Service) Halt(providerSubID string) error {
	sub, err := s.lookupByProviderID(providerSubID, "halted")
	if err != nil || sub == nil {
		return err
	}

	graceEnd := s.now().Add(s.graceWindow)
	ok, err := s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusActive, models.SubStatusPastDue},
		map[string]interface{}{
			"status":                models.SubStatusGracePeriod,
			"grace_period_end_date": graceEnd,
		})
	if err != nil {
		return err
	}
	if ok {
		s.enqueueNotification(sub.UserID, "Payment issue",
			"We could not renew your subscription. Please update your payment method before your benefits pause.")
	}
	return nil
}

// CancelByProvider applies a provider-initiated cancellation immediately.
func (s *Service) CancelByProvider(providerSubID string) error {
	sub, err := s.lookupByProviderID(providerSubID, "cancelled")
	if err != nil || sub == nil {
		return err
	}
	return s.cancelNow(sub)
}

// Cancel ends a subscription on the user's or an admin's request. Immediate
// cancellation takes effect now and enqueues a quota recheck; otherwise the
// cancellation is scheduled for the current cycle's expiry and the provider
// mandate stops auto-renewing.
func (s *Service) Cancel(ctx context.Context, subID uint, immediate bool) error {
	sub, err := s.subs.GetByID(subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(apperrors.CodeSubscriptionNotFound, "subscription not found")
		}
		return err
	}
	if sub.IsTerminal() {
		return apperrors.Validation("subscription already ended")
	}

	if sub.ProviderSubscriptionID != "" {
		if err := s.provider.CancelSubscription(ctx, sub.ProviderSubscriptionID, !immediate); err != nil {
			if !errors.Is(err, billing.ErrProviderNotFound) {
				return apperrors.Provider(err, "could not cancel provider subscription")
			}
			// Provider no longer knows the mandate; proceed locally.
		}
	}

	if immediate {
		return s.cancelNow(sub)
	}

	effective := s.now()
	if sub.ExpiryDate != nil {
		effective = *sub.ExpiryDate
	}
	_, err = s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod},
		map[string]interface{}{
			"auto_renew":               false,
			"scheduled_change_type":    models.ScheduledChangeCancellation,
			"scheduled_effective_date": effective,
		})
	return err
}

// Complete ends a non-renewing fixed-term subscription; same reconciliation
// path as cancellation.
func (s *Service) Complete(providerSubID string) error {
	sub, err := s.lookupByProviderID(providerSubID, "completed")
	if err != nil || sub == nil {
		return err
	}

	ok, err := s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod, models.SubStatusAuthenticated},
		map[string]interface{}{"status": models.SubStatusCompleted})
	if err != nil {
		return err
	}
	if ok {
		s.enqueueEndOfSubscription(sub.ID, sub.UserID)
	}
	return nil
}

// Upgrade starts the two-phase mid-cycle upgrade: proration credit is
// computed, the old mandate is cancelled, and a one-off order covers the
// difference. The new recurring mandate is only established once the order is
// paid (ConfirmUpgradeOrder).
func (s *Service) Upgrade(ctx context.Context, userID, newPlanID uint, cycle string) (*UpgradeOrder, error) {
	newPlan, err := s.activePlan(newPlanID)
	if err != nil {
		return nil, err
	}
	if newPlan.Type != models.PlanTypeSubscription {
		return nil, apperrors.Validation("upgrades apply to subscription plans only")
	}

	current, err := s.currentSubscription(userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound(apperrors.CodeSubscriptionNotFound, "no active subscription to upgrade")
	}
	if newPlan.Tier <= current.PlanTier {
		return nil, apperrors.Validation("new plan must be a higher tier; use downgrade instead")
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	credit := proration.Credit(current.PricePaid, current.StartDate, current.ExpiryDate, s.now())
	amountDue := proration.UpgradeCharge(newPlan.PriceFor(cycle), credit)

	// Stop the old mandate first; the old row is marked upgraded even though
	// the replacement is not active yet.
	if current.ProviderSubscriptionID != "" {
		if err := s.provider.CancelSubscription(ctx, current.ProviderSubscriptionID, false); err != nil &&
			!errors.Is(err, billing.ErrProviderNotFound) {
			return nil, apperrors.Provider(err, "could not cancel old provider subscription")
		}
	}
	if _, err := s.subs.UpdateStatusIf(current.ID,
		[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod},
		map[string]interface{}{"status": models.SubStatusUpgraded}); err != nil {
		return nil, err
	}

	receipt := "upg-" + uuid.New().String()
	orderID, err := s.provider.CreateOneTimeOrder(ctx, customerID, amountDue, receipt)
	if err != nil {
		if errors.Is(err, billing.ErrProviderNotFound) {
			return nil, s.RecoverStaleProviderRefs(userID, 0, cycle)
		}
		return nil, apperrors.Provider(err, "could not create upgrade order")
	}

	prevID := current.ID
	newSub, err := s.createAuthenticated(userID, newPlan, cycle, "", orderID, &prevID)
	if err != nil {
		return nil, err
	}

	return &UpgradeOrder{
		OrderID:           orderID,
		AmountDue:         amountDue,
		Credit:            credit,
		NewSubscriptionID: newSub.ID,
	}, nil
}

// ConfirmUpgradeOrder establishes the new recurring mandate after the one-off
// upgrade payment is confirmed (order.paid webhook).
func (s *Service) ConfirmUpgradeOrder(ctx context.Context, orderID, paymentID string, amount int64) error {
	sub, err := s.subs.GetByProviderOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infof("[Lifecycle] order.paid for unknown order %s ignored", orderID)
			return nil
		}
		return err
	}
	if sub.Status != models.SubStatusAuthenticated {
		log.Infof("[Lifecycle] order.paid for sub %d ignored (status=%s)", sub.ID, sub.Status)
		return nil
	}
	if sub.ProviderSubscriptionID != "" {
		// Mandate already created on a previous delivery.
		return nil
	}

	user, err := s.users.GetByID(sub.UserID)
	if err != nil {
		return err
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return err
	}
	plan, err := s.plans.GetByID(sub.PlanID)
	if err != nil {
		return err
	}
	planRef, err := s.ensurePlanRef(ctx, plan, sub.BillingCycle)
	if err != nil {
		return err
	}
	providerSubID, err := s.provider.CreateSubscription(ctx, customerID, planRef)
	if err != nil {
		if errors.Is(err, billing.ErrProviderNotFound) {
			// The retry signal requeues the order.paid job; the next attempt
			// recreates the provider-side ids.
			return s.RecoverStaleProviderRefs(sub.UserID, sub.PlanID, sub.BillingCycle)
		}
		return apperrors.Provider(err, "could not create upgraded provider subscription")
	}

	updates := map[string]interface{}{
		"provider_subscription_id": providerSubID,
		"last_charge_id":           paymentID,
	}
	if amount > 0 {
		updates["price_paid"] = amount
	}
	_, err = s.subs.UpdateStatusIf(sub.ID, []string{models.SubStatusAuthenticated}, updates)
	return err
}

// Downgrade never charges or credits immediately: the change is recorded and
// takes effect at the current cycle's expiry, when the completion path applies
// the lower plan and triggers the lock sweep.
func (s *Service) Downgrade(ctx context.Context, userID, newPlanID uint) error {
	newPlan, err := s.activePlan(newPlanID)
	if err != nil {
		return err
	}
	if newPlan.Type != models.PlanTypeSubscription {
		return apperrors.Validation("downgrades apply to subscription plans only")
	}

	current, err := s.currentSubscription(userID)
	if err != nil {
		return err
	}
	if current == nil {
		return apperrors.NotFound(apperrors.CodeSubscriptionNotFound, "no active subscription to downgrade")
	}
	if newPlan.Tier >= current.PlanTier {
		return apperrors.Validation("new plan must be a lower tier; use upgrade instead")
	}

	if current.ProviderSubscriptionID != "" {
		if err := s.provider.CancelSubscription(ctx, current.ProviderSubscriptionID, true); err != nil &&
			!errors.Is(err, billing.ErrProviderNotFound) {
			return apperrors.Provider(err, "could not stop auto-renewal")
		}
	}

	effective := s.now()
	if current.ExpiryDate != nil {
		effective = *current.ExpiryDate
	}
	_, err = s.subs.UpdateStatusIf(current.ID,
		[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod},
		map[string]interface{}{
			"auto_renew":               false,
			"scheduled_change_type":    models.ScheduledChangeDowngrade,
			"scheduled_new_plan_id":    newPlanID,
			"scheduled_effective_date": effective,
		})
	return err
}

// ApplyScheduledDowngrade executes a recorded downgrade at or after its
// effective date: the old row becomes terminal and a fresh row on the lower
// plan takes over, followed by a quota recheck. Reports whether the downgrade
// was applied; a row outside the applicable statuses is left alone.
func (s *Service) ApplyScheduledDowngrade(ctx context.Context, subID uint) (bool, error) {
	sub, err := s.subs.GetByID(subID)
	if err != nil {
		return false, err
	}
	if sub.ScheduledChangeType != models.ScheduledChangeDowngrade || sub.ScheduledNewPlanID == nil {
		return false, nil
	}
	if sub.ScheduledEffectiveDate != nil && s.now().Before(*sub.ScheduledEffectiveDate) {
		return false, nil
	}

	newPlan, err := s.activePlan(*sub.ScheduledNewPlanID)
	if err != nil {
		return false, err
	}

	ok, err := s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod, models.SubStatusExpired, models.SubStatusCompleted},
		map[string]interface{}{"status": models.SubStatusDowngraded})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	user, err := s.users.GetByID(sub.UserID)
	if err != nil {
		return false, err
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return false, err
	}
	planRef, err := s.ensurePlanRef(ctx, newPlan, sub.BillingCycle)
	if err != nil {
		return false, err
	}
	providerSubID, err := s.provider.CreateSubscription(ctx, customerID, planRef)
	if err != nil {
		if errors.Is(err, billing.ErrProviderNotFound) {
			return false, s.RecoverStaleProviderRefs(sub.UserID, newPlan.ID, sub.BillingCycle)
		}
		return false, apperrors.Provider(err, "could not create downgraded provider subscription")
	}

	// The successor entitles immediately so the shrink sweep locks down to
	// the new plan's limit, not the free tier. The provider's activated
	// event is a no-op for an already active row.
	now := s.now()
	expiry := now.Add(cycleDuration(newPlan, sub.BillingCycle))
	prevID := sub.ID
	successor := &models.Subscription{
		UserID:                 sub.UserID,
		PlanID:                 newPlan.ID,
		PlanType:               newPlan.Type,
		PlanTier:               newPlan.Tier,
		BillingCycle:           sub.BillingCycle,
		Status:                 models.SubStatusActive,
		StartDate:              &now,
		ExpiryDate:             &expiry,
		AutoRenew:              true,
		PricePaid:              newPlan.PriceFor(sub.BillingCycle),
		ProviderSubscriptionID: providerSubID,
		PreviousSubscriptionID: &prevID,
	}
	if err := successor.SetPlanSnapshot(newPlan); err != nil {
		return false, err
	}
	if err := s.subs.Create(successor); err != nil {
		return false, err
	}

	s.enqueueShrink(sub.UserID, "downgrade")
	return true, nil
}

// Grant creates an active subscription without a provider mandate (admin
// path). It shares the same invariants as purchases.
func (s *Service) Grant(userID, planID uint, days int) (*models.Subscription, error) {
	plan, err := s.activePlan(planID)
	if err != nil {
		return nil, err
	}
	if plan.Type == models.PlanTypeSubscription {
		if err := s.checkSingleActive(userID, 0); err != nil {
			return nil, err
		}
	}
	if _, err := s.users.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
		}
		return nil, err
	}

	now := s.now()
	if days <= 0 {
		days = plan.DurationDays
	}
	expiry := now.Add(time.Duration(days) * 24 * time.Hour)

	sub := &models.Subscription{
		UserID:       userID,
		PlanID:       plan.ID,
		PlanType:     plan.Type,
		PlanTier:     plan.Tier,
		BillingCycle: models.BillingCycleMonthly,
		Status:       models.SubStatusActive,
		StartDate:    &now,
		ExpiryDate:   &expiry,
		AutoRenew:    false,
	}
	if err := sub.SetPlanSnapshot(plan); err != nil {
		return nil, err
	}
	if err := s.subs.Create(sub); err != nil {
		return nil, err
	}

	s.enqueueGrowth(userID)
	return sub, nil
}

// Extend pushes a subscription's expiry out by the given number of days
// (admin path).
func (s *Service) Extend(subID uint, days int) error {
	if days <= 0 {
		return apperrors.Validation("days must be positive")
	}
	sub, err := s.subs.GetByID(subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(apperrors.CodeSubscriptionNotFound, "subscription not found")
		}
		return err
	}
	if sub.IsTerminal() {
		return apperrors.Validation("cannot extend an ended subscription")
	}

	base := s.now()
	if sub.ExpiryDate != nil && sub.ExpiryDate.After(base) {
		base = *sub.ExpiryDate
	}
	expiry := base.Add(time.Duration(days) * 24 * time.Hour)

	ok, err := s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod},
		map[string]interface{}{
			"status":                models.SubStatusActive,
			"expiry_date":           expiry,
			"grace_period_end_date": nil,
			"reminders_sent":        "",
		})
	if err != nil {
		return err
	}
	if ok {
		s.enqueueGrowth(sub.UserID)
	}
	return nil
}

// EndOfSubscription is the shared reconciliation after any terminal shrink:
// scheduled downgrades are applied, then entitlements are recomputed and a
// lock sweep runs against the reduced limits.
func (s *Service) EndOfSubscription(ctx context.Context, subID uint) error {
	sub, err := s.subs.GetByID(subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if sub.ScheduledChangeType == models.ScheduledChangeDowngrade {
		applied, err := s.ApplyScheduledDowngrade(ctx, sub.ID)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		// A downgrade scheduled on a row that was cancelled in the meantime
		// does not apply; the shrink still must run.
	}

	s.enqueueShrink(sub.UserID, "subscription_ended")
	s.enqueueNotification(sub.UserID, "Subscription ended",
		"Your subscription has ended. Content above the free storage limit has been locked.")
	return nil
}

// --- helpers ---

func (s *Service) cancelNow(sub *models.Subscription) error {
	ok, err := s.subs.UpdateStatusIf(sub.ID,
		[]string{models.SubStatusAuthenticated, models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod},
		map[string]interface{}{"status": models.SubStatusCancelled})
	if err != nil {
		return err
	}
	if ok {
		s.enqueueEndOfSubscription(sub.ID, sub.UserID)
	}
	return nil
}

func (s *Service) createAuthenticated(userID uint, plan *models.Plan, cycle, providerSubID, orderID string, previousID *uint) (*models.Subscription, error) {
	if cycle != models.BillingCycleYearly {
		cycle = models.BillingCycleMonthly
	}
	sub := &models.Subscription{
		UserID:                 userID,
		PlanID:                 plan.ID,
		PlanType:               plan.Type,
		PlanTier:               plan.Tier,
		BillingCycle:           cycle,
		Status:                 models.SubStatusAuthenticated,
		AutoRenew:              true,
		PricePaid:              plan.PriceFor(cycle),
		ProviderSubscriptionID: providerSubID,
		ProviderOrderID:        orderID,
		PreviousSubscriptionID: previousID,
	}
	if err := sub.SetPlanSnapshot(plan); err != nil {
		return nil, err
	}
	if err := s.subs.Create(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// lookupByProviderID resolves webhook events that require an existing row.
// Providers redeliver events, so an unknown id is logged and ignored rather
// than treated as an error; no phantom record is created.
func (s *Service) lookupByProviderID(providerSubID, event string) (*models.Subscription, error) {
	if strings.TrimSpace(providerSubID) == "" {
		return nil, apperrors.Validation("provider subscription id is required")
	}
	sub, err := s.subs.GetByProviderSubscriptionID(providerSubID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Lifecycle] %s for unknown provider subscription %s ignored", event, providerSubID)
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (s *Service) activePlan(planID uint) (*models.Plan, error) {
	plan, err := s.plans.GetByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodePlanNotFound, "plan not found")
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, apperrors.Validation("plan is no longer offered")
	}
	return plan, nil
}

// checkSingleActive enforces the invariant that at most one subscription-type
// row per user is in {active, grace_period}.
func (s *Service) checkSingleActive(userID, excludeID uint) error {
	count, err := s.subs.CountEntitlingSubscriptionType(userID, excludeID)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperrors.Consistency("user already has an active subscription")
	}
	return nil
}

func (s *Service) currentSubscription(userID uint) (*models.Subscription, error) {
	rows, err := s.subs.ListByUserWithStatuses(userID,
		[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod})
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].PlanType == models.PlanTypeSubscription {
			return &rows[i], nil
		}
	}
	return nil, nil
}

// ensureCustomer returns the user's provider customer id, creating it when
// missing. A stale cached id reported by the provider is cleared and the
// caller gets a retry signal instead of a permanent failure.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.ProviderCustomerID != "" {
		return user.ProviderCustomerID, nil
	}
	customerID, err := s.provider.CreateCustomer(ctx, user.Username, user.Email)
	if err != nil {
		return "", apperrors.Provider(err, "could not create provider customer")
	}
	if err := s.users.SetProviderCustomerID(user.ID, customerID); err != nil {
		return "", err
	}
	user.ProviderCustomerID = customerID
	return customerID, nil
}

// ensurePlanRef returns the provider-side plan reference for a cycle,
// creating it when missing and recovering from stale cached refs.
func (s *Service) ensurePlanRef(ctx context.Context, plan *models.Plan, cycle string) (string, error) {
	if ref := plan.ProviderRefFor(cycle); ref != "" {
		return ref, nil
	}
	days := plan.DurationDays
	if cycle == models.BillingCycleYearly {
		days = plan.DurationDaysYearly
	}
	ref, err := s.provider.CreatePlan(ctx, fmt.Sprintf("%s-%s", plan.Name, cycle), plan.PriceFor(cycle), days)
	if err != nil {
		return "", apperrors.Provider(err, "could not create provider plan")
	}
	if err := s.plans.SetProviderPlanRef(plan.ID, cycle, ref); err != nil {
		return "", err
	}
	return ref, nil
}

// RecoverStaleProviderRefs clears cached provider ids the provider no longer
// recognizes. Returns a retry signal the caller can surface.
func (s *Service) RecoverStaleProviderRefs(userID, planID uint, cycle string) error {
	if userID != 0 {
		if err := s.users.ClearProviderCustomerID(userID); err != nil {
			return err
		}
	}
	if planID != 0 {
		if err := s.plans.ClearProviderPlanRef(planID, cycle); err != nil {
			return err
		}
	}
	return apperrors.ProviderRetry("stale provider reference cleared; retry the operation")
}

func (s *Service) enqueueGrowth(userID uint) {
	s.enqueue(models.JobTypeUnlockContent, map[string]interface{}{"user_id": userID})
	s.enqueue(models.JobTypeRefreshEntitlements, map[string]interface{}{"user_id": userID})
}

func (s *Service) enqueueShrink(userID uint, reason string) {
	s.enqueue(models.JobTypeRecheckAndLock, map[string]interface{}{"user_id": userID, "reason": reason})
	s.enqueue(models.JobTypeRefreshEntitlements, map[string]interface{}{"user_id": userID})
}

func (s *Service) enqueueEndOfSubscription(subID, userID uint) {
	s.enqueue(models.JobTypeEndOfSubscription, map[string]interface{}{
		"subscription_id": subID,
		"user_id":         userID,
	})
}

func (s *Service) enqueueNotification(userID uint, title, body string) {
	s.enqueue(models.JobTypeNotification, map[string]interface{}{
		"user_id": userID,
		"title":   title,
		"body":    body,
	})
}

func (s *Service) enqueue(jobType string, payload map[string]interface{}) {
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.EnqueueJob(jobType, payload); err != nil {
		log.Errorf("[Lifecycle] failed to enqueue %s: %v", jobType, err)
	}
}

func cycleDuration(plan *models.Plan, cycle string) time.Duration {
	if plan != nil {
		return plan.DurationFor(cycle)
	}
	if cycle == models.BillingCycleYearly {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}
