package entitlements

import (
	"strings"

	"github.com/jackmine/storefront/app/models"
)

// Plan is the effective tier a player is entitled to.
type Plan string

const (
	PlanFree Plan = "FREE"
	PlanVIP  Plan = "VIP"
	PlanTop  Plan = "TOP"
)

// FromSubscriptionType maps a stored subscription_type to its plan.
func FromSubscriptionType(subscriptionType string) Plan {
	switch strings.ToLower(strings.TrimSpace(subscriptionType)) {
	case models.SubscriptionTypeTop:
		return PlanTop
	case models.SubscriptionTypeVIP:
		return PlanVIP
	default:
		return PlanFree
	}
}

// Normalize accepts any casing and falls back to FREE.
func Normalize(plan string) Plan {
	switch Plan(strings.ToUpper(strings.TrimSpace(plan))) {
	case PlanTop:
		return PlanTop
	case PlanVIP:
		return PlanVIP
	default:
		return PlanFree
	}
}

// Rank orders plans so TOP outranks VIP outranks FREE.
func (p Plan) Rank() int {
	switch Normalize(string(p)) {
	case PlanTop:
		return 2
	case PlanVIP:
		return 1
	default:
		return 0
	}
}
