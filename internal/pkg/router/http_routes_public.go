package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/jackmine/storefront/app/controllers"
	"github.com/jackmine/storefront/internal/pkg/constants"
	"github.com/jackmine/storefront/internal/pkg/env"
	"github.com/jackmine/storefront/internal/pkg/metrics"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get(constants.StoreRoute, controllers.HandleStore)
	app.Get(constants.SubscriptionsRoute, controllers.HandleSubscriptions)
	app.Get(constants.PaymentSuccessRoute, controllers.HandlePaymentSuccess)

	// Prometheus scrape endpoint and the fiber monitor page
	app.Get("/metrics", metricsAuth(), metrics.Handler())
	app.Get("/monitor", metricsAuth(), monitor.New(monitor.Config{Title: "JACKMINE storefront"}))
}

// metricsAuth guards the ops endpoints with basic auth when METRICS_USER is set.
func metricsAuth() fiber.Handler {
	user := env.GetEnv("METRICS_USER", "")
	if user == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return basicauth.New(basicauth.Config{
		Users: map[string]string{
			user: env.GetEnv("METRICS_PASSWORD", ""),
		},
	})
}
