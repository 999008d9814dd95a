package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ripple-social/ripple/app/repository"
	"github.com/ripple-social/ripple/internal/pkg/billing"
	"github.com/ripple-social/ripple/internal/pkg/cache"
	"github.com/ripple-social/ripple/internal/pkg/database"
	"github.com/ripple-social/ripple/internal/pkg/entitlements"
	"github.com/ripple-social/ripple/internal/pkg/env"
	"github.com/ripple-social/ripple/internal/pkg/jobqueue"
	"github.com/ripple-social/ripple/internal/pkg/lifecycle"
	"github.com/ripple-social/ripple/internal/pkg/notification"
	"github.com/ripple-social/ripple/internal/pkg/quota"
	"github.com/ripple-social/ripple/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Graceful shutdown: stop accepting requests, then drain the job queue.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	jobqueue.GetManager().Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	setupJobQueue()

	app := fiber.New(fiber.Config{
		AppName: "ripple",
	})

	app.Use(recover.New(), logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	router.InstallRouter(app)

	return app
}

// setupJobQueue wires the processor and the reconciliation sweeper into the
// global manager and starts it.
func setupJobQueue() {
	db := database.GetDB()
	repos := repository.NewRepositories(db)

	provider := billing.NewClientFromEnv()
	manager := jobqueue.GetManager()

	lc := lifecycle.NewServiceFromDB(db, provider, manager.GetQueue())
	resolver := entitlements.NewResolver(repos.Subscription, repos.Plan)
	qe := quota.NewEngine(repos.Content, resolver)
	bs := billing.NewService(repos.WebhookLog)
	notifier := notification.NewLogDispatcher()

	manager.Configure(jobqueue.NewProcessor(lc, qe, resolver, bs, notifier), lc)
	manager.Start()
}
