package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ripple-social/ripple/app/models"
	"github.com/ripple-social/ripple/internal/pkg/billing"
	"github.com/ripple-social/ripple/internal/pkg/database"
	"github.com/ripple-social/ripple/internal/pkg/env"
	"github.com/ripple-social/ripple/internal/pkg/jobqueue"
)

// HandleBillingWebhook ingests provider webhook events: verify, persist,
// acknowledge. The lifecycle work happens in the job queue so the provider
// gets its 200 fast and redeliveries stay cheap.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	eventID := strings.TrimSpace(c.Get("X-Webhook-Event-ID"))
	signature := strings.TrimSpace(c.Get("X-Webhook-Signature"))
	secret := env.GetEnv("BILLING_WEBHOOK_SECRET", "")

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := svc.IngestWebhook(ctx, rawBody, eventID, signature, secret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	switch result.Outcome {
	case billing.IngestInvalidSignature:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case billing.IngestMalformed:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case billing.IngestDuplicate:
		// Redelivery of a known event; the first delivery owns processing.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	payload := (&jobqueue.WebhookPayload{
		WebhookLogID: result.Log.ID,
		Event:        result.Event,
		RawBody:      string(rawBody),
	}).ToMap()
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(models.JobTypeProcessWebhookEvent, payload); err != nil {
		// The audit row stays in received; the operator can replay it.
		log.Errorf("[Webhook] Could not enqueue processing for event %s: %v", result.Log.ProviderEventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "enqueue_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleWebhookEvents lists recent webhook audit entries (admin).
func HandleWebhookEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	events, err := svc.RecentEvents(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{"events": events})
}
