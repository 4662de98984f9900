package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sujit-baniya/flash"

	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/checkoutflow"
	"github.com/jackmine/storefront/views"
)

const defaultRequestTimeout = 15 * time.Second

// StatusResolver answers subscription status lookups.
type StatusResolver interface {
	Resolve(ctx context.Context, username string) (*billing.SubscriptionStatus, error)
	ResolveOrFree(ctx context.Context, username string) *billing.SubscriptionStatus
}

// WebhookHandler applies provider webhook deliveries.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// CaptchaVerifier checks the captcha token of a checkout form.
type CaptchaVerifier interface {
	Enabled() bool
	Verify(ctx context.Context, token string) (bool, error)
}

// StorefrontDeps wires the storefront controller.
type StorefrontDeps struct {
	Checkout       checkoutflow.Creator
	Status         StatusResolver
	Webhooks       WebhookHandler
	Captcha        CaptchaVerifier
	CaptchaSiteKey string
	// ServerAddress is shown on the payment success page.
	ServerAddress  string
	RequestTimeout time.Duration
}

// StorefrontController serves the store pages and the payment API.
type StorefrontController struct {
	checkout       checkoutflow.Creator
	status         StatusResolver
	webhooks       WebhookHandler
	captcha        CaptchaVerifier
	captchaSiteKey string
	serverAddress  string
	timeout        time.Duration
}

func NewStorefrontController(deps StorefrontDeps) *StorefrontController {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &StorefrontController{
		checkout:       deps.Checkout,
		status:         deps.Status,
		webhooks:       deps.Webhooks,
		captcha:        deps.Captcha,
		captchaSiteKey: deps.CaptchaSiteKey,
		serverAddress:  deps.ServerAddress,
		timeout:        timeout,
	}
}

// requestContext bounds the outbound calls of one request.
func (sc *StorefrontController) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), sc.timeout)
}

func (sc *StorefrontController) captchaEnabled() bool {
	return sc.captcha != nil && sc.captcha.Enabled()
}

// requestOrigin is the site the browser is on; empty lets the checkout
// service use PUBLIC_DOMAIN.
func requestOrigin(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(fiber.HeaderOrigin))
}

// render wraps content in the layout with the pending flash message.
func render(c *fiber.Ctx, status int, title string, content templ.Component) error {
	page := views.Home(title, flash.Get(c), content)
	handler := adaptor.HTTPHandler(templ.Handler(page, templ.WithStatus(status)))
	return handler(c)
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}
