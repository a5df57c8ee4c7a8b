package router

import (
	"github.com/dweber/subsync/app/controllers"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1")
	v1.Post("/checkout", controllers.HandleCreateCheckoutSession)
	v1.Get("/users/:id/subscription", controllers.HandleGetUserSubscription)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
