package billing

import (
	"math"
	"strings"

	"github.com/jackmine/storefront/app/models"
)

const (
	productTypeSubscription = models.ProductTypeSubscription
	productTypeItem         = models.ProductTypeItem
)

func normalizeProductType(productType string) string {
	return strings.ToLower(strings.TrimSpace(productType))
}

// toMinorUnits converts a decimal price into integer minor currency units.
func toMinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// subscriptionStatusFromProvider maps a provider subscription status onto the stored one.
// Only "active" grants the tier.
func subscriptionStatusFromProvider(status string) string {
	if strings.EqualFold(strings.TrimSpace(status), "active") {
		return models.SubscriptionStatusActive
	}
	return models.SubscriptionStatusInactive
}

func isSubscriptionType(productID string) bool {
	switch strings.ToLower(strings.TrimSpace(productID)) {
	case models.SubscriptionTypeVIP, models.SubscriptionTypeTop:
		return true
	default:
		return false
	}
}
