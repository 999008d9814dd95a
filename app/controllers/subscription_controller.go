package controllers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ripple-social/ripple/app/repository"
	"github.com/ripple-social/ripple/internal/pkg/apperrors"
	"github.com/ripple-social/ripple/internal/pkg/billing"
	"github.com/ripple-social/ripple/internal/pkg/database"
	"github.com/ripple-social/ripple/internal/pkg/entitlements"
	"github.com/ripple-social/ripple/internal/pkg/jobqueue"
	"github.com/ripple-social/ripple/internal/pkg/lifecycle"
	"github.com/ripple-social/ripple/internal/pkg/quota"
)

var validate = validator.New()

// PurchaseRequest starts a new subscription or storage add-on.
type PurchaseRequest struct {
	PlanID       uint   `json:"plan_id" validate:"required,min=1"`
	BillingCycle string `json:"billing_cycle" validate:"omitempty,oneof=monthly yearly"`
}

// UpgradeRequest moves the user to a higher tier mid-cycle.
type UpgradeRequest struct {
	NewPlanID    uint   `json:"new_plan_id" validate:"required,min=1"`
	BillingCycle string `json:"billing_cycle" validate:"omitempty,oneof=monthly yearly"`
}

// DowngradeRequest schedules a move to a lower tier at cycle end.
type DowngradeRequest struct {
	NewPlanID uint `json:"new_plan_id" validate:"required,min=1"`
}

// CancelRequest ends a subscription now or at cycle end.
type CancelRequest struct {
	SubscriptionID uint `json:"subscription_id" validate:"required,min=1"`
	Immediate      bool `json:"immediate"`
}

// QuotaCheckRequest asks whether an upload of the given size fits.
type QuotaCheckRequest struct {
	SizeBytes int64 `json:"size_bytes" validate:"required,min=1"`
}

func lifecycleService() *lifecycle.Service {
	return lifecycle.NewServiceFromDB(database.GetDB(), billing.NewClientFromEnv(), jobqueue.GetManager().GetQueue())
}

// HandleListPlans returns the purchasable plan catalog.
func HandleListPlans(c *fiber.Ctx) error {
	plans, err := repository.NewPlanRepository(database.GetDB()).GetActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "plan_list_failed"})
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandlePurchase starts the purchase flow. The returned subscription is in
// authenticated and becomes active once the provider confirms activation.
func HandlePurchase(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req PurchaseRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	sub, err := lifecycleService().Purchase(c.Context(), userID, req.PlanID, req.BillingCycle)
	if err != nil {
		return renderAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"subscription": sub})
}

// HandleUpgrade starts a mid-cycle upgrade and returns the one-off order the
// user must pay to complete it.
func HandleUpgrade(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req UpgradeRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	order, err := lifecycleService().Upgrade(c.Context(), userID, req.NewPlanID, req.BillingCycle)
	if err != nil {
		return renderAppError(c, err)
	}
	return c.JSON(fiber.Map{"order": order})
}

// HandleDowngrade schedules a downgrade for the end of the current cycle.
func HandleDowngrade(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req DowngradeRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := lifecycleService().Downgrade(c.Context(), userID, req.NewPlanID); err != nil {
		return renderAppError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "scheduled": true})
}

// HandleCancel cancels one of the caller's subscriptions.
func HandleCancel(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req CancelRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	// Ownership check before the transition.
	sub, err := repository.NewSubscriptionRepository(database.GetDB()).GetByID(req.SubscriptionID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "subscription not found"})
	}
	if sub.UserID != userID {
		// Do not leak existence.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "subscription not found"})
	}

	if err := lifecycleService().Cancel(c.Context(), req.SubscriptionID, req.Immediate); err != nil {
		return renderAppError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "immediate": req.Immediate})
}

// HandleListSubscriptions returns the caller's subscription history.
func HandleListSubscriptions(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	subs, err := repository.NewSubscriptionRepository(database.GetDB()).ListByUser(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

// HandleGetEntitlements resolves the caller's effective entitlements. The
// cached snapshot serves reads; a miss falls through to the resolver.
func HandleGetEntitlements(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	if ents, ok := entitlements.GetSnapshot(userID); ok {
		return c.JSON(fiber.Map{"entitlements": ents, "cached": true})
	}

	repos := repository.NewRepositories(database.GetDB())
	ents, err := entitlements.NewResolver(repos.Subscription, repos.Plan).Resolve(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "resolve_failed"})
	}
	_ = entitlements.StoreSnapshot(userID, ents)
	return c.JSON(fiber.Map{"entitlements": ents, "cached": false})
}

// HandleGetQuota reports the caller's private storage usage against their
// current limit.
func HandleGetQuota(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	usage, err := quotaEngine().CheckQuota(userID, 0)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "quota_failed"})
	}
	return c.JSON(fiber.Map{"quota": usage})
}

// HandleQuotaCheck is the pre-upload admission check.
func HandleQuotaCheck(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req QuotaCheckRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	usage, err := quotaEngine().CheckQuota(userID, req.SizeBytes)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "quota_failed"})
	}
	if !usage.Allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "quota_exceeded",
			"quota": usage,
		})
	}
	return c.JSON(fiber.Map{"ok": true, "quota": usage})
}

func quotaEngine() *quota.Engine {
	repos := repository.NewRepositories(database.GetDB())
	return quota.NewEngine(repos.Content, entitlements.NewResolver(repos.Subscription, repos.Plan))
}

func parseAndValidate(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	return nil
}

// renderAppError maps service errors onto consistent JSON responses.
func renderAppError(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.HTTPCode).JSON(fiber.Map{"error": string(appErr.Code), "message": appErr.Message, "details": appErr.Details})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
}

// requireUserID reads the authenticated user id injected by the gateway.
func requireUserID(c *fiber.Ctx) (uint, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "missing X-User-ID header")
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "invalid X-User-ID header")
	}
	return uint(parsed), nil
}
