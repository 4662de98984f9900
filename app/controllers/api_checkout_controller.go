package controllers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/metrics"
)

type checkSubscriptionRequest struct {
	Username string `json:"username"`
}

// HandleCreateCheckout creates a hosted checkout session and returns its URL.
// Bad input and provider failures both answer 500 with an error message.
func (sc *StorefrontController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req billing.CheckoutRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		metrics.CheckoutSessions.WithLabelValues("unknown", "invalid").Inc()
		return jsonError(c, fiber.StatusInternalServerError, "invalid request body")
	}

	ctx, cancel := sc.requestContext(c)
	defer cancel()

	productType := productTypeLabel(req.ProductType)
	res, err := sc.checkout.CreateCheckoutSession(ctx, req, requestOrigin(c))
	if err != nil {
		if billing.IsValidation(err) {
			metrics.CheckoutSessions.WithLabelValues(productType, "invalid").Inc()
		} else {
			log.Errorf("[API] Checkout session for %q failed: %v", req.Username, err)
			metrics.CheckoutSessions.WithLabelValues(productType, "error").Inc()
		}
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}

	metrics.CheckoutSessions.WithLabelValues(productType, "created").Inc()
	return c.JSON(res)
}

// HandleCheckSubscription returns the effective plan and recent orders of a player.
func (sc *StorefrontController) HandleCheckSubscription(c *fiber.Ctx) error {
	var req checkSubscriptionRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "invalid request body")
	}

	ctx, cancel := sc.requestContext(c)
	defer cancel()

	status, err := sc.status.Resolve(ctx, req.Username)
	if err != nil {
		if !billing.IsValidation(err) {
			log.Errorf("[API] Subscription lookup for %q failed: %v", req.Username, err)
		}
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(status)
}

// HandleStripeWebhook verifies and applies one provider delivery. Signature
// failures answer 400 so the provider does not retry; everything else that
// fails answers 500 so it does.
func (sc *StorefrontController) HandleStripeWebhook(c *fiber.Ctx) error {
	ctx, cancel := sc.requestContext(c)
	defer cancel()

	// c.Body is only valid during the handler; the reconciler keeps no reference.
	err := sc.webhooks.HandleWebhook(ctx, c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		if billing.IsSignatureError(err) {
			return jsonError(c, fiber.StatusBadRequest, "Webhook Error: "+err.Error())
		}
		log.Errorf("[API] Webhook processing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"received": true})
}

func productTypeLabel(productType string) string {
	switch t := strings.ToLower(strings.TrimSpace(productType)); t {
	case "subscription", "item":
		return t
	default:
		return "unknown"
	}
}
