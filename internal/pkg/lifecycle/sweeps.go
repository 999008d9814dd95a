package lifecycle

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/ripple-social/ripple/app/models"
)

// Reminder offsets in days before expiry. Each offset fires at most once per
// cycle; renewal clears the markers.
var reminderOffsets = []int{7, 3, 1}

// SweepExpired moves rows whose paid cycle lapsed without a provider event
// into the grace period. The grace window is anchored at the missed expiry,
// not at sweep time, so a delayed sweep does not extend benefits.
func (s *Service) SweepExpired() (int, error) {
	now := s.now()
	rows, err := s.subs.ListExpiredBefore(
		[]string{models.SubStatusActive, models.SubStatusPastDue}, now)
	if err != nil {
		return 0, err
	}

	moved := 0
	for i := range rows {
		sub := &rows[i]
		if sub.ExpiryDate == nil {
			continue
		}
		graceEnd := sub.ExpiryDate.Add(s.graceWindow)
		ok, err := s.subs.UpdateStatusIf(sub.ID,
			[]string{models.SubStatusActive, models.SubStatusPastDue},
			map[string]interface{}{
				"status":                models.SubStatusGracePeriod,
				"grace_period_end_date": graceEnd,
			})
		if err != nil {
			log.Errorf("[Lifecycle] sweep: could not move sub %d to grace period: %v", sub.ID, err)
			continue
		}
		if ok {
			moved++
			s.enqueueNotification(sub.UserID, "Subscription expired",
				"Your subscription period has ended. Renew within the grace period to keep your benefits.")
		}
	}
	if moved > 0 {
		log.Infof("[Lifecycle] sweep: %d subscription(s) entered grace period", moved)
	}
	return moved, nil
}

// SweepGraceEnded expires rows whose grace window ran out and hands each to
// the end-of-subscription reconciliation job.
func (s *Service) SweepGraceEnded() (int, error) {
	now := s.now()
	rows, err := s.subs.ListGraceEndedBefore(now)
	if err != nil {
		return 0, err
	}

	moved := 0
	for i := range rows {
		sub := &rows[i]
		ok, err := s.subs.UpdateStatusIf(sub.ID,
			[]string{models.SubStatusGracePeriod},
			map[string]interface{}{"status": models.SubStatusExpired})
		if err != nil {
			log.Errorf("[Lifecycle] sweep: could not expire sub %d: %v", sub.ID, err)
			continue
		}
		if ok {
			moved++
			s.enqueueEndOfSubscription(sub.ID, sub.UserID)
		}
	}
	if moved > 0 {
		log.Infof("[Lifecycle] sweep: %d subscription(s) expired after grace", moved)
	}
	return moved, nil
}

// SweepReminders sends upcoming-expiry reminders for auto-renew-off rows at
// the configured day offsets. A marker on the row keeps each offset
// at-most-once even across overlapping sweep runs.
func (s *Service) SweepReminders() (int, error) {
	now := s.now()
	maxOffset := reminderOffsets[0]
	rows, err := s.subs.ListExpiringBetween(now, now.Add(time.Duration(maxOffset)*24*time.Hour))
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range rows {
		sub := &rows[i]
		if sub.AutoRenew || sub.ExpiryDate == nil {
			continue
		}
		daysLeft := int(sub.ExpiryDate.Sub(now).Hours() / 24)
		// Smallest configured offset that still covers daysLeft; a row that
		// appears late skips the offsets it already passed.
		target := 0
		for _, offset := range reminderOffsets {
			if daysLeft <= offset {
				target = offset
			}
		}
		if target == 0 || sub.HasReminderSent(target) {
			continue
		}
		sub.MarkReminderSent(target)
		if _, err := s.subs.UpdateStatusIf(sub.ID,
			[]string{sub.Status},
			map[string]interface{}{"reminders_sent": sub.RemindersSent}); err != nil {
			log.Errorf("[Lifecycle] sweep: could not mark reminder on sub %d: %v", sub.ID, err)
			continue
		}
		s.enqueueNotification(sub.UserID, "Subscription expiring soon",
			fmt.Sprintf("Your subscription expires in %d day(s). Renew to keep your benefits and storage.", target))
		sent++
	}
	return sent, nil
}

// SweepScheduledChanges applies due scheduled cancellations and downgrades.
// Normally the provider's completed/cancelled event triggers these; the sweep
// is the safety net for missed deliveries.
func (s *Service) SweepScheduledChanges() (int, error) {
	now := s.now()
	rows, err := s.subs.ListExpiredBefore(
		[]string{models.SubStatusActive, models.SubStatusPastDue, models.SubStatusGracePeriod}, now)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range rows {
		sub := &rows[i]
		if sub.ScheduledChangeType == "" {
			continue
		}
		if sub.ScheduledEffectiveDate != nil && now.Before(*sub.ScheduledEffectiveDate) {
			continue
		}
		switch sub.ScheduledChangeType {
		case models.ScheduledChangeCancellation:
			if err := s.cancelNow(sub); err != nil {
				log.Errorf("[Lifecycle] sweep: could not apply scheduled cancellation for sub %d: %v", sub.ID, err)
				continue
			}
			applied++
		case models.ScheduledChangeDowngrade:
			// Routed through the job queue so the provider calls retry on
			// transient failure.
			s.enqueue(models.JobTypeApplyDowngrade, map[string]interface{}{
				"subscription_id": sub.ID,
				"user_id":         sub.UserID,
			})
			applied++
		}
	}
	return applied, nil
}
