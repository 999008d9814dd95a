package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ripple-social/ripple/app/repository"
	"github.com/ripple-social/ripple/internal/pkg/database"
	"github.com/ripple-social/ripple/internal/pkg/jobqueue"
)

// GrantRequest creates an active subscription without a payment mandate.
type GrantRequest struct {
	UserID uint `json:"user_id" validate:"required,min=1"`
	PlanID uint `json:"plan_id" validate:"required,min=1"`
	Days   int  `json:"days" validate:"omitempty,min=1"`
}

// ExtendRequest pushes a subscription's expiry out.
type ExtendRequest struct {
	SubscriptionID uint `json:"subscription_id" validate:"required,min=1"`
	Days           int  `json:"days" validate:"required,min=1"`
}

// AdminCancelRequest force-cancels any subscription.
type AdminCancelRequest struct {
	SubscriptionID uint `json:"subscription_id" validate:"required,min=1"`
	Immediate      bool `json:"immediate"`
}

// HandleAdminGrant grants a complimentary subscription.
func HandleAdminGrant(c *fiber.Ctx) error {
	var req GrantRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	sub, err := lifecycleService().Grant(req.UserID, req.PlanID, req.Days)
	if err != nil {
		return renderAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"subscription": sub})
}

// HandleAdminExtend extends a subscription's current cycle.
func HandleAdminExtend(c *fiber.Ctx) error {
	var req ExtendRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := lifecycleService().Extend(req.SubscriptionID, req.Days); err != nil {
		return renderAppError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleAdminCancel cancels any subscription through the same transition the
// user-facing path uses.
func HandleAdminCancel(c *fiber.Ctx) error {
	var req AdminCancelRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := lifecycleService().Cancel(c.Context(), req.SubscriptionID, req.Immediate); err != nil {
		return renderAppError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "immediate": req.Immediate})
}

// HandleAdminUserSubscriptions lists any user's subscription history.
func HandleAdminUserSubscriptions(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}
	subs, err := repository.NewSubscriptionRepository(database.GetDB()).ListByUser(uint(userID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

// HandleAdminQueueStats reports job counts per status.
func HandleAdminQueueStats(c *fiber.Ctx) error {
	stats, err := jobqueue.GetManager().GetQueue().Stats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_failed"})
	}
	return c.JSON(fiber.Map{"jobs": stats, "running": jobqueue.GetManager().IsRunning()})
}

// HandleAdminRunSweep triggers one reconciliation pass immediately.
func HandleAdminRunSweep(c *fiber.Ctx) error {
	if err := jobqueue.GetManager().RunSweepOnce(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sweep_failed", "message": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}
