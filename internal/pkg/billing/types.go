package billing

import (
	"time"

	"github.com/jackmine/storefront/internal/pkg/entitlements"
)

// CheckoutRequest is the buyer and product a checkout session is created for.
// It is forwarded to the provider as session metadata and never stored.
type CheckoutRequest struct {
	Username    string  `json:"username" validate:"required,max=64"`
	Email       string  `json:"email" validate:"required,email"`
	ProductType string  `json:"productType" validate:"required,oneof=subscription item"`
	ProductID   string  `json:"productId" validate:"required"`
	Price       float64 `json:"price" validate:"gt=0"`
	ProductName string  `json:"productName" validate:"required"`
}

// CheckoutResult carries the provider-hosted page the buyer is sent to.
type CheckoutResult struct {
	URL string `json:"url"`
}

// OrderSummary is the public view of a completed order.
type OrderSummary struct {
	ProductType string    `json:"product_type"`
	ProductID   string    `json:"product_id"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubscriptionStatus is the effective plan of a player.
type SubscriptionStatus struct {
	SubscriptionType entitlements.Plan `json:"subscriptionType"`
	SubscriptionEnd  *time.Time        `json:"subscriptionEnd"`
	Orders           []OrderSummary    `json:"orders"`
}

// FreeStatus is what callers show when nothing better is known.
func FreeStatus() *SubscriptionStatus {
	return &SubscriptionStatus{
		SubscriptionType: entitlements.PlanFree,
		Orders:           []OrderSummary{},
	}
}

// SessionParams describes the single line item checkout session sent to the provider.
type SessionParams struct {
	CustomerID  string
	ProductName string
	Currency    string
	UnitAmount  int64
	Recurring   bool
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// ProviderSubscription is the subset of a provider subscription the reconciler reads.
type ProviderSubscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd time.Time
}

// GrantKind says what a grant job has to apply on the game server.
type GrantKind string

const (
	GrantSubscription GrantKind = "subscription"
	GrantItem         GrantKind = "item"
	// GrantSync re-derives the player's plan from the store after a provider-side change.
	GrantSync GrantKind = "sync"
)

// Grant is handed to the job queue after an entitlement change was stored.
type Grant struct {
	EventID   string    `json:"event_id"`
	Kind      GrantKind `json:"kind"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
}
