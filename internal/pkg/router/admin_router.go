package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ripple-social/ripple/app/controllers"
	"github.com/ripple-social/ripple/internal/pkg/env"
)

type AdminRouter struct {
}

func NewAdminRouter() *AdminRouter {
	return &AdminRouter{}
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	admin := app.Group("/admin", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_USER", "admin"): env.GetEnv("ADMIN_PASSWORD", "changeme"),
		},
	}))

	admin.Post("/subscriptions/grant", controllers.HandleAdminGrant)
	admin.Post("/subscriptions/extend", controllers.HandleAdminExtend)
	admin.Post("/subscriptions/cancel", controllers.HandleAdminCancel)
	admin.Get("/users/:id/subscriptions", controllers.HandleAdminUserSubscriptions)

	admin.Get("/webhooks", controllers.HandleWebhookEvents)

	admin.Get("/queues", controllers.HandleAdminQueueStats)
	admin.Post("/sweep", controllers.HandleAdminRunSweep)

	admin.Get("/metrics", monitor.New())
}
