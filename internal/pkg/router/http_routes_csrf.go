package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/jackmine/storefront/app/controllers"
	"github.com/jackmine/storefront/internal/pkg/constants"
	"github.com/jackmine/storefront/internal/pkg/env"
)

func isAPIRequest(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), constants.APIPrefix+"/")
}

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next:           isAPIRequest,
	}

	group := app.Group("", cors.New(cors.Config{Next: isAPIRequest}), csrf.New(csrfConf))
	group.Get(constants.HomeRoute, controllers.HandleStart)

	// Checkout forms
	group.Get("/checkout/item/:itemId", controllers.HandleCheckoutItem)
	group.Post("/checkout/item/:itemId", controllers.HandleCheckoutItemSubmit)
	group.Get("/checkout/:type", controllers.HandleCheckoutPlan)
	group.Post("/checkout/:type", controllers.HandleCheckoutPlanSubmit)
}
