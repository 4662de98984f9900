package constants

// Page routes the provider redirects back to and the flash redirects use.
const (
	HomeRoute           = "/"
	StoreRoute          = "/store"
	SubscriptionsRoute  = "/subscriptions"
	PaymentSuccessRoute = "/payment/success"
)

// API routes, relative to the /api group.
const (
	APIPrefix              = "/api"
	CreateCheckoutRoute    = "/create-checkout"
	CheckSubscriptionRoute = "/check-subscription"
	StripeWebhookRoute     = "/stripe-webhook"
)
