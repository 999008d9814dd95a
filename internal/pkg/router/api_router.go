package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ripple-social/ripple/app/controllers"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 120,
	}))

	v1 := api.Group("/v1")

	// Webhook ingestion is unauthenticated; the HMAC signature is the auth.
	v1.Post("/webhooks/billing", controllers.HandleBillingWebhook)

	v1.Get("/plans", controllers.HandleListPlans)

	v1.Get("/subscriptions", controllers.HandleListSubscriptions)
	v1.Post("/subscriptions", controllers.HandlePurchase)
	v1.Post("/subscriptions/upgrade", controllers.HandleUpgrade)
	v1.Post("/subscriptions/downgrade", controllers.HandleDowngrade)
	v1.Post("/subscriptions/cancel", controllers.HandleCancel)

	v1.Get("/entitlements", controllers.HandleGetEntitlements)
	v1.Get("/quota", controllers.HandleGetQuota)
	v1.Post("/quota/check", controllers.HandleQuotaCheck)
}
