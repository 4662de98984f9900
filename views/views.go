package views

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"

	"github.com/jackmine/storefront/app/models"
	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/catalog"
	"github.com/jackmine/storefront/internal/pkg/checkoutflow"
)

const siteName = "JACKMINE"

// CheckoutView is everything the checkout page shows.
type CheckoutView struct {
	Action         string
	Product        catalog.Product
	Username       string
	Email          string
	Errors         checkoutflow.FieldErrors
	Notice         string
	CSRFToken      string
	CaptchaSiteKey string
}

// FormatPrice renders a catalog price the way the store shows it.
func FormatPrice(price float64) string {
	return fmt.Sprintf("R$ %.2f", price)
}

func flashText(msg fiber.Map) string {
	text, _ := msg["message"].(string)
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}

func flashKind(msg fiber.Map) string {
	if kind, _ := msg["type"].(string); kind != "" {
		return kind
	}
	return "info"
}

func categoryLabel(c string) string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(c[:1]) + c[1:]
}

func categoryURL(c string) templ.SafeURL {
	return templ.URL("/store?category=" + url.QueryEscape(c))
}

func checkoutURL(planID string) templ.SafeURL {
	return templ.URL("/checkout/" + url.PathEscape(planID))
}

func itemCheckoutURL(itemID string) templ.SafeURL {
	return templ.URL("/checkout/item/" + url.PathEscape(itemID))
}

func planPrice(p catalog.Plan) string {
	if !p.Purchasable() {
		return "Free"
	}
	return FormatPrice(p.Price) + " / " + strconv.Itoa(p.Days) + " days"
}

func planUntil(status *billing.SubscriptionStatus) string {
	if status.SubscriptionEnd == nil {
		return ""
	}
	return " until " + status.SubscriptionEnd.Format("2006-01-02")
}

func isCurrentPlan(p catalog.Plan, status *billing.SubscriptionStatus) bool {
	return status != nil && status.SubscriptionType == p.Type
}

func purchaseKind(p catalog.Product) string {
	if p.Type == models.ProductTypeSubscription {
		return "Monthly subscription"
	}
	return "One-time purchase"
}
