package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/jackmine/storefront/app/controllers"
	"github.com/jackmine/storefront/internal/pkg/constants"
	"github.com/jackmine/storefront/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIPrefix, cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Stripe-Signature",
	}))

	// Pre-flight requests that reach this far carry no CORS request headers.
	api.Options("/*", func(c *fiber.Ctx) error {
		c.Status(fiber.StatusNoContent)
		return nil
	})

	limited := limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 30),
		Expiration: time.Minute,
	})
	api.Post(constants.CreateCheckoutRoute, limited, controllers.HandleCreateCheckout)
	api.Post(constants.CheckSubscriptionRoute, limited, controllers.HandleCheckSubscription)

	// The provider retries on its own schedule; never rate limit it.
	api.Post(constants.StripeWebhookRoute, controllers.HandleStripeWebhook)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
