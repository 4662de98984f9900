package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/jackmine/storefront/internal/pkg/catalog"
	"github.com/jackmine/storefront/internal/pkg/checkoutflow"
	"github.com/jackmine/storefront/internal/pkg/constants"
	"github.com/jackmine/storefront/internal/pkg/metrics"
	"github.com/jackmine/storefront/internal/pkg/session"
	"github.com/jackmine/storefront/views"
)

const captchaNotice = "Please confirm that you are not a robot."

func (sc *StorefrontController) HandleCheckoutPlan(c *fiber.Ctx) error {
	product, ok := catalog.SubscriptionProduct(c.Params("type"))
	if !ok {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Plan not found"}).Redirect(constants.HomeRoute)
	}
	return sc.renderCheckout(c, fiber.StatusOK, sc.prefilledView(c, product))
}

func (sc *StorefrontController) HandleCheckoutPlanSubmit(c *fiber.Ctx) error {
	product, ok := catalog.SubscriptionProduct(c.Params("type"))
	if !ok {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Plan not found"}).Redirect(constants.HomeRoute)
	}
	return sc.submitCheckout(c, product)
}

func (sc *StorefrontController) HandleCheckoutItem(c *fiber.Ctx) error {
	product, ok := catalog.ItemProduct(c.Params("itemId"))
	if !ok {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Product not found"}).Redirect(constants.StoreRoute)
	}
	return sc.renderCheckout(c, fiber.StatusOK, sc.prefilledView(c, product))
}

func (sc *StorefrontController) HandleCheckoutItemSubmit(c *fiber.Ctx) error {
	product, ok := catalog.ItemProduct(c.Params("itemId"))
	if !ok {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Product not found"}).Redirect(constants.StoreRoute)
	}
	return sc.submitCheckout(c, product)
}

// submitCheckout drives one checkout flow for the posted form. Field errors
// re-render with 422, a failed session creation with 502; both keep the
// entered values so the buyer can retry.
func (sc *StorefrontController) submitCheckout(c *fiber.Ctx, product catalog.Product) error {
	username := c.FormValue("username")
	email := c.FormValue("email")

	view := sc.baseView(c, product)
	view.Username = username
	view.Email = email

	ctx, cancel := sc.requestContext(c)
	defer cancel()

	if sc.captchaEnabled() {
		passed, err := sc.captcha.Verify(ctx, c.FormValue("h-captcha-response"))
		if err != nil {
			log.Warnf("[Checkout] Captcha verification failed: %v", err)
		}
		if !passed {
			view.Notice = captchaNotice
			return sc.renderCheckout(c, fiber.StatusUnprocessableEntity, view)
		}
	}

	flow := checkoutflow.New(product, sc.checkout, requestOrigin(c))
	state, err := flow.Submit(ctx, username, email)
	view.Errors = flow.Errors
	view.Notice = flow.Notice

	switch state {
	case checkoutflow.StateRedirecting:
		metrics.CheckoutSessions.WithLabelValues(product.Type, "created").Inc()
		if err := session.SetSessionValues(c, map[string]string{
			session.KeyBuyerUsername: flow.Username,
			session.KeyBuyerEmail:    flow.Email,
		}); err != nil {
			log.Warnf("[Checkout] Could not remember buyer details: %v", err)
		}
		return c.Redirect(flow.RedirectURL, fiber.StatusSeeOther)
	case checkoutflow.StateError:
		log.Errorf("[Checkout] Session for %q (%s) failed after %v: %v", username, product.ID, flow.History(), err)
		metrics.CheckoutSessions.WithLabelValues(product.Type, "error").Inc()
		return sc.renderCheckout(c, fiber.StatusBadGateway, view)
	default:
		metrics.CheckoutSessions.WithLabelValues(product.Type, "invalid").Inc()
		return sc.renderCheckout(c, fiber.StatusUnprocessableEntity, view)
	}
}

func (sc *StorefrontController) baseView(c *fiber.Ctx, product catalog.Product) views.CheckoutView {
	csrfToken, _ := c.Locals("csrf").(string)
	view := views.CheckoutView{
		Action:    c.Path(),
		Product:   product,
		CSRFToken: csrfToken,
	}
	if sc.captchaEnabled() {
		view.CaptchaSiteKey = sc.captchaSiteKey
	}
	return view
}

// prefilledView fills in the buyer details of the last checkout in this session.
func (sc *StorefrontController) prefilledView(c *fiber.Ctx, product catalog.Product) views.CheckoutView {
	view := sc.baseView(c, product)
	view.Username = session.GetSessionValue(c, session.KeyBuyerUsername)
	view.Email = session.GetSessionValue(c, session.KeyBuyerEmail)
	return view
}

func (sc *StorefrontController) renderCheckout(c *fiber.Ctx, status int, view views.CheckoutView) error {
	return render(c, status, " | Checkout", views.CheckoutForm(view))
}
