package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/ripple-social/ripple/app/models"
	"github.com/ripple-social/ripple/internal/pkg/billing"
	"github.com/ripple-social/ripple/internal/pkg/entitlements"
	"github.com/ripple-social/ripple/internal/pkg/lifecycle"
	"github.com/ripple-social/ripple/internal/pkg/notification"
	"github.com/ripple-social/ripple/internal/pkg/quota"
)

// Processor wires claimed jobs to the services that execute them.
type Processor struct {
	lifecycle *lifecycle.Service
	quota     *quota.Engine
	resolver  *entitlements.Resolver
	billing   *billing.Service
	notifier  notification.Dispatcher
}

// NewProcessor creates the job dispatcher over the given services.
func NewProcessor(lc *lifecycle.Service, qe *quota.Engine, resolver *entitlements.Resolver, bs *billing.Service, notifier notification.Dispatcher) *Processor {
	return &Processor{
		lifecycle: lc,
		quota:     qe,
		resolver:  resolver,
		billing:   bs,
		notifier:  notifier,
	}
}

// Handle routes a claimed job by type. Returned errors trigger a retry, so
// every branch must tolerate re-execution.
func (p *Processor) Handle(job *models.BackgroundJob) error {
	switch job.Type {
	case models.JobTypeProcessWebhookEvent:
		return p.processWebhookEvent(job)
	case models.JobTypeRefreshEntitlements:
		return p.refreshEntitlements(job)
	case models.JobTypeRecheckAndLock:
		return p.recheckAndLock(job)
	case models.JobTypeUnlockContent:
		return p.unlockContent(job)
	case models.JobTypeEndOfSubscription:
		return p.endOfSubscription(job)
	case models.JobTypeApplyDowngrade:
		return p.applyDowngrade(job)
	case models.JobTypeNotification:
		return p.sendNotification(job)
	default:
		// Unknown types dead-letter immediately; retrying cannot help.
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// processWebhookEvent replays a recorded provider event through the lifecycle
// state machine and closes out the audit row.
func (p *Processor) processWebhookEvent(job *models.BackgroundJob) error {
	data, err := job.Payload()
	if err != nil {
		return err
	}
	payload, err := WebhookPayloadFromMap(data)
	if err != nil {
		return err
	}

	procErr := p.routeWebhookEvent(payload)
	if p.billing != nil && payload.WebhookLogID != 0 {
		// Attempts counts prior tries; the audit row records the final
		// outcome only once no retry will follow.
		lastAttempt := job.Attempts+1 >= job.MaxAttempts
		if procErr == nil || lastAttempt {
			if merr := p.billing.MarkWebhookProcessed(context.Background(), payload.WebhookLogID, procErr); merr != nil {
				log.Errorf("[JobQueue] Could not update webhook log %d: %v", payload.WebhookLogID, merr)
			}
		}
	}
	return procErr
}

func (p *Processor) routeWebhookEvent(payload *WebhookPayload) error {
	env, err := billing.ParseEnvelope([]byte(payload.RawBody))
	if err != nil {
		return fmt.Errorf("malformed webhook body: %w", err)
	}

	if billing.IsSubscriptionEvent(env.Event) {
		ev, err := billing.ParseSubscriptionEvent(env.Payload)
		if err != nil {
			return err
		}
		switch env.Event {
		case billing.EventSubscriptionAuthenticated:
			// The local row already exists from the purchase path; the event
			// confirms mandate setup and needs no transition.
			log.Debugf("[JobQueue] Mandate authenticated for provider sub %s", ev.SubscriptionID)
			return nil
		case billing.EventSubscriptionActivated:
			return p.lifecycle.Activate(ev.SubscriptionID)
		case billing.EventSubscriptionCharged:
			return p.lifecycle.Renew(ev.SubscriptionID, ev.PaymentID, ev.Amount)
		case billing.EventSubscriptionPending:
			return p.lifecycle.MarkPastDue(ev.SubscriptionID)
		case billing.EventSubscriptionHalted:
			return p.lifecycle.Halt(ev.SubscriptionID)
		case billing.EventSubscriptionCancelled:
			return p.lifecycle.CancelByProvider(ev.SubscriptionID)
		case billing.EventSubscriptionCompleted:
			return p.lifecycle.Complete(ev.SubscriptionID)
		default:
			log.Infof("[JobQueue] Ignoring unhandled subscription event %s", env.Event)
			return nil
		}
	}

	if env.Event == billing.EventOrderPaid {
		ev, err := billing.ParseOrderEvent(env.Payload)
		if err != nil {
			return err
		}
		return p.lifecycle.ConfirmUpgradeOrder(context.Background(), ev.OrderID, ev.PaymentID, ev.Amount)
	}

	log.Infof("[JobQueue] Ignoring unhandled event %s", env.Event)
	return nil
}

// refreshEntitlements recomputes and caches a user's entitlement snapshot.
func (p *Processor) refreshEntitlements(job *models.BackgroundJob) error {
	data, err := job.Payload()
	if err != nil {
		return err
	}
	payload, err := UserPayloadFromMap(data)
	if err != nil {
		return err
	}

	ents, err := p.resolver.Resolve(payload.UserID)
	if err != nil {
		return err
	}
	if err := entitlements.StoreSnapshot(payload.UserID, ents); err != nil {
		// Cache is advisory; the resolver remains the source of truth.
		log.Warnf("[JobQueue] Could not cache entitlements for user %d: %v", payload.UserID, err)
	}
	return nil
}

// recheckAndLock runs the quota lock sweep after an entitlement shrink.
func (p *Processor) recheckAndLock(job *models.BackgroundJob) error {
	data, err := job.Payload()
	if err != nil {
		return err
	}
	payload, err := QuotaPayloadFromMap(data)
	if err != nil {
		return err
	}
	reason := payload.Reason
	if reason == "" {
		reason = "entitlement_change"
	}
	locked, err := p.quota.RecheckAndLock(payload.UserID, reason)
	if err != nil {
		return err
	}
	if locked > 0 && p.notifier != nil {
		p.notifier.Notify(payload.UserID, "Content locked",
			fmt.Sprintf("%d item(s) were locked because your storage allowance decreased. Upgrade or free up space to restore access.", locked))
	}
	return nil
}

// unlockContent restores access after an entitlement grow, then lets the lock
// sweep re-verify against the new limit.
func (p *Processor) unlockContent(job *models.BackgroundJob) error {
	data, err := job.Payload()
	if err != nil {
		return err
	}
	payload, err := UserPayloadFromMap(data)
	if err != nil {
		return err
	}
	unlocked, err := p.quota.UnlockAll(payload.UserID)
	if err != nil {
		return err
	}
	if unlocked > 0 {
		log.Infof("[JobQueue] Unlocked %d item(s) for user %d", unlocked, payload.UserID)
	}
	// A grow can still leave the user over a smaller-than-before limit.
	_, err = p.quota.RecheckAndLock(payload.UserID, "post_unlock_recheck")
	return err
}

func (p *Processor) endOfSubscription(job *models.BackgroundJob) error {
	data, err := job.Payload()
	if err != nil {
		return err
	}
	payload, err := SubscriptionPayloadFromMap(data)
	if err != nil {
		return err
	}
	return p.lifecycle.EndOfSubscription(context.Background(), payload.SubscriptionID)
}

func (p *Processor) applyDowngrade(job *models.BackgroundJob) error {
	data, err := job.Payload()
	if err != nil {
		return err
	}
	payload, err := SubscriptionPayloadFromMap(data)
	if err != nil {
		return err
	}
	_, err = p.lifecycle.ApplyScheduledDowngrade(context.Background(), payload.SubscriptionID)
	return err
}

func (p *Processor) sendNotification(job *models.BackgroundJob) error {
	data, err := job.Payload()
	if err != nil {
		return err
	}
	payload, err := NotificationPayloadFromMap(data)
	if err != nil {
		return err
	}
	if p.notifier == nil {
		return nil
	}
	p.notifier.Notify(payload.UserID, payload.Title, payload.Body)
	return nil
}
