package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/catalog"
	"github.com/jackmine/storefront/internal/pkg/session"
	"github.com/jackmine/storefront/views"
)

const featuredItems = 3

func (sc *StorefrontController) HandleStart(c *fiber.Ctx) error {
	featured := catalog.Items()
	if len(featured) > featuredItems {
		featured = featured[:featuredItems]
	}
	return render(c, fiber.StatusOK, "", views.HomeIndex(catalog.Plans(), featured))
}

// HandleStore lists the items of ?category=, all of them when it is unknown.
func (sc *StorefrontController) HandleStore(c *fiber.Ctx) error {
	category := catalog.NormalizeCategory(c.Query("category"))
	return render(c, fiber.StatusOK, " | Store",
		views.StoreIndex(catalog.Categories(), category, catalog.ItemsByCategory(category)))
}

// HandleSubscriptions shows the plans. ?username= marks the player's plan;
// lookup failures fall back to FREE so the page always renders.
func (sc *StorefrontController) HandleSubscriptions(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.Query("username"))
	var status *billing.SubscriptionStatus
	if username != "" {
		ctx, cancel := sc.requestContext(c)
		defer cancel()
		status = sc.status.ResolveOrFree(ctx, username)
	}
	return render(c, fiber.StatusOK, " | Subscriptions", views.PlansIndex(catalog.Plans(), username, status))
}

// HandlePaymentSuccess is the provider's return page. Entitlements arrive via
// the webhook, so the plan shown may still be the previous one.
func (sc *StorefrontController) HandlePaymentSuccess(c *fiber.Ctx) error {
	username := session.GetSessionValue(c, session.KeyBuyerUsername)
	var status *billing.SubscriptionStatus
	if username != "" {
		ctx, cancel := sc.requestContext(c)
		defer cancel()
		status = sc.status.ResolveOrFree(ctx, username)
	}
	return render(c, fiber.StatusOK, " | Payment confirmed", views.PaymentSuccess(sc.serverAddress, username, status))
}
