package router

import (
	"github.com/dweber/subsync/app/controllers"
	"github.com/dweber/subsync/internal/pkg/billing"
	"github.com/dweber/subsync/internal/pkg/cache"
	"github.com/dweber/subsync/internal/pkg/database"
	"github.com/dweber/subsync/internal/pkg/env"
	"github.com/dweber/subsync/internal/pkg/logging"
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	service := billing.NewService(
		billing.NewStripeVerifier(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		billing.NewRepository(database.GetDB()),
		cache.NewEventSeenCache(),
		logging.Logger,
	)
	webhooks := controllers.NewWebhookController(service)

	// Billing provider webhooks (signature-verified in the service).
	app.Post("/webhooks/stripe", webhooks.HandleStripeWebhook)
	app.Options("/webhooks/stripe", webhooks.HandleStripeWebhookPreflight)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
