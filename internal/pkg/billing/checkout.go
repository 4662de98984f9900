package billing

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/jackmine/storefront/app/models"
	"github.com/jackmine/storefront/internal/pkg/constants"
	"github.com/jackmine/storefront/internal/pkg/env"
)

const (
	successPath             = constants.PaymentSuccessRoute
	subscriptionsPath       = constants.SubscriptionsRoute
	storePath               = constants.StoreRoute
	defaultCheckoutCurrency = "brl"
)

// CheckoutService creates provider checkout sessions.
type CheckoutService struct {
	gateway   Gateway
	currency  string
	fallback  string
	validator *validator.Validate
}

// NewCheckoutService creates a checkout service. fallbackOrigin is used when
// the request carries no Origin header.
func NewCheckoutService(gateway Gateway, currency, fallbackOrigin string) *CheckoutService {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCheckoutCurrency
	}
	return &CheckoutService{
		gateway:   gateway,
		currency:  currency,
		fallback:  strings.TrimRight(strings.TrimSpace(fallbackOrigin), "/"),
		validator: newRequestValidator(),
	}
}

// newRequestValidator reports fields by their JSON names.
func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewCheckoutServiceFromEnv wires the service from STRIPE_CURRENCY and PUBLIC_DOMAIN.
func NewCheckoutServiceFromEnv(gateway Gateway) *CheckoutService {
	return NewCheckoutService(gateway, env.GetEnv("STRIPE_CURRENCY", defaultCheckoutCurrency), env.GetEnv("PUBLIC_DOMAIN", ""))
}

// Currency is the ISO code sessions are priced in.
func (s *CheckoutService) Currency() string {
	return s.currency
}

// CreateCheckoutSession validates req and returns the hosted checkout URL.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest, origin string) (*CheckoutResult, error) {
	req = normalizeRequest(req)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	base := strings.TrimRight(strings.TrimSpace(origin), "/")
	if base == "" {
		base = s.fallback
	}

	log.Infof("[Billing] Creating checkout for %s, product %s (%s), price %.2f", req.Username, req.ProductName, req.ProductType, req.Price)

	customerID, err := s.gateway.FindOrCreateCustomer(ctx, req.Email, req.Username)
	if err != nil {
		return nil, upstream("find or create customer", err)
	}

	cancelPath := storePath
	if req.ProductType == productTypeSubscription {
		cancelPath = subscriptionsPath
	}

	url, err := s.gateway.CreateSession(ctx, SessionParams{
		CustomerID:  customerID,
		ProductName: req.ProductName,
		Currency:    s.currency,
		UnitAmount:  toMinorUnits(req.Price),
		Recurring:   req.ProductType == productTypeSubscription,
		SuccessURL:  base + successPath,
		CancelURL:   base + cancelPath,
		Metadata: map[string]string{
			"username":     req.Username,
			"product_type": req.ProductType,
			"product_id":   req.ProductID,
		},
	})
	if err != nil {
		return nil, upstream("create checkout session", err)
	}
	if strings.TrimSpace(url) == "" {
		return nil, upstream("create checkout session", errors.New("provider returned an empty checkout url"))
	}

	return &CheckoutResult{URL: url}, nil
}

func normalizeRequest(req CheckoutRequest) CheckoutRequest {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.ProductType = normalizeProductType(req.ProductType)
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.ProductName = strings.TrimSpace(req.ProductName)
	return req
}

func (s *CheckoutService) validate(req CheckoutRequest) error {
	err := s.validator.Struct(req)
	if err == nil {
		// Recurring sessions must name a plan the webhook can grant.
		if req.ProductType == productTypeSubscription && !isSubscriptionType(req.ProductID) {
			return &ValidationError{
				Field:   "productId",
				Message: "must be one of: " + models.SubscriptionTypeVIP + " " + models.SubscriptionTypeTop,
			}
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Field(), Message: validationMessage(fe)}
	}
	return &ValidationError{Message: err.Error()}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "is too long"
	default:
		return "is invalid"
	}
}
