package billing

import "context"

// Gateway is the payment provider as seen by the checkout and reconciliation flows.
type Gateway interface {
	// FindOrCreateCustomer returns the provider customer for email, creating
	// one named after the player when none exists.
	FindOrCreateCustomer(ctx context.Context, email, username string) (string, error)
	// CreateSession creates a hosted checkout session and returns its URL.
	CreateSession(ctx context.Context, params SessionParams) (string, error)
	// LatestSubscription returns the newest subscription of a customer, or nil.
	LatestSubscription(ctx context.Context, customerID string) (*ProviderSubscription, error)
	// CustomerUsername reads the player name stored on the customer's metadata.
	CustomerUsername(ctx context.Context, customerID string) (string, error)
}
