package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/jackmine/storefront/internal/pkg/env"
)

const usernameMetadataKey = "username"

// StripeGateway talks to Stripe through the official client.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a gateway for secretKey. Passing nil backends uses
// Stripe's default endpoints.
func NewStripeGateway(secretKey string, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api}
}

// NewStripeGatewayFromEnv reads STRIPE_SECRET_KEY.
func NewStripeGatewayFromEnv() *StripeGateway {
	key := strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	if key == "" {
		log.Warn("[Billing] STRIPE_SECRET_KEY is not configured, provider calls will fail")
	}
	return NewStripeGateway(key, nil)
}

func (g *StripeGateway) FindOrCreateCustomer(ctx context.Context, email, username string) (string, error) {
	listParams := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	listParams.Limit = stripe.Int64(1)
	listParams.Context = ctx

	iter := g.api.Customers.List(listParams)
	if iter.Next() {
		existing := iter.Customer()
		log.Infof("[Billing] Using existing customer %s", existing.ID)
		return existing.ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", err
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(username),
	}
	params.AddMetadata(usernameMetadataKey, username)
	params.Context = ctx

	created, err := g.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	log.Infof("[Billing] Created customer %s for %s", created.ID, username)
	return created.ID, nil
}

func (g *StripeGateway) CreateSession(ctx context.Context, in SessionParams) (string, error) {
	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency: stripe.String(in.Currency),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(in.ProductName),
		},
		UnitAmount: stripe.Int64(in.UnitAmount),
	}

	mode := stripe.CheckoutSessionModePayment
	if in.Recurring {
		mode = stripe.CheckoutSessionModeSubscription
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(in.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	log.Infof("[Billing] Created checkout session %s", sess.ID)
	return sess.URL, nil
}

func (g *StripeGateway) LatestSubscription(ctx context.Context, customerID string) (*ProviderSubscription, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	iter := g.api.Subscriptions.List(params)
	if !iter.Next() {
		return nil, iter.Err()
	}
	return fromStripeSubscription(iter.Subscription()), nil
}

func (g *StripeGateway) CustomerUsername(ctx context.Context, customerID string) (string, error) {
	if strings.TrimSpace(customerID) == "" {
		return "", nil
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := g.api.Customers.Get(customerID, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(c.Metadata[usernameMetadataKey]), nil
}

func fromStripeSubscription(s *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:     s.ID,
		Status: string(s.Status),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	return out
}
