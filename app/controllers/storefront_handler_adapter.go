package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jackmine/storefront/app/repository"
	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/cache"
	"github.com/jackmine/storefront/internal/pkg/env"
	"github.com/jackmine/storefront/internal/pkg/hcaptcha"
)

// Global storefront controller instance
var storefrontController *StorefrontController

// InitializeStorefrontController installs the controller the router adapters use.
func InitializeStorefrontController(deps StorefrontDeps) {
	storefrontController = NewStorefrontController(deps)
}

// GetStorefrontController returns the global controller, building it from
// the environment when main did not install one.
func GetStorefrontController() *StorefrontController {
	if storefrontController == nil {
		InitializeStorefrontController(DefaultStorefrontDeps())
	}
	return storefrontController
}

// DefaultStorefrontDeps builds the dependencies from env and the global
// repositories. Entitlement grants are not queued; main wires the job queue.
func DefaultStorefrontDeps() StorefrontDeps {
	repos := repository.GetGlobalRepositories()
	gateway := billing.NewStripeGatewayFromEnv()
	store := cache.NewJSONStore(cache.GetClient())
	captcha := hcaptcha.NewVerifierFromEnv()

	return StorefrontDeps{
		Checkout:       billing.NewCheckoutServiceFromEnv(gateway),
		Status:         billing.NewStatusResolver(repos.Subscription, repos.Order, billing.WithResolverCache(store, 0)),
		Webhooks:       billing.NewReconcilerFromEnv(gateway, repos, billing.WithStatusCache(store)),
		Captcha:        captcha,
		CaptchaSiteKey: captcha.SiteKey,
		ServerAddress:  env.GetEnv("GAMESERVER_ADDRESS", ""),
	}
}

// Adapter functions for the router

func HandleStart(c *fiber.Ctx) error {
	return GetStorefrontController().HandleStart(c)
}

func HandleStore(c *fiber.Ctx) error {
	return GetStorefrontController().HandleStore(c)
}

func HandleSubscriptions(c *fiber.Ctx) error {
	return GetStorefrontController().HandleSubscriptions(c)
}

func HandlePaymentSuccess(c *fiber.Ctx) error {
	return GetStorefrontController().HandlePaymentSuccess(c)
}

func HandleCheckoutPlan(c *fiber.Ctx) error {
	return GetStorefrontController().HandleCheckoutPlan(c)
}

func HandleCheckoutPlanSubmit(c *fiber.Ctx) error {
	return GetStorefrontController().HandleCheckoutPlanSubmit(c)
}

func HandleCheckoutItem(c *fiber.Ctx) error {
	return GetStorefrontController().HandleCheckoutItem(c)
}

func HandleCheckoutItemSubmit(c *fiber.Ctx) error {
	return GetStorefrontController().HandleCheckoutItemSubmit(c)
}

func HandleCreateCheckout(c *fiber.Ctx) error {
	return GetStorefrontController().HandleCreateCheckout(c)
}

func HandleCheckSubscription(c *fiber.Ctx) error {
	return GetStorefrontController().HandleCheckSubscription(c)
}

func HandleStripeWebhook(c *fiber.Ctx) error {
	return GetStorefrontController().HandleStripeWebhook(c)
}
