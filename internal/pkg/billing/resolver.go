package billing

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/jackmine/storefront/app/models"
	"github.com/jackmine/storefront/app/repository"
	"github.com/jackmine/storefront/internal/pkg/entitlements"
)

const (
	recentOrdersLimit     = 5
	statusCacheKeyPrefix  = "subscription_status:"
	defaultStatusCacheTTL = time.Minute
)

// StatusCache is the JSON key/value store resolved statuses are kept in.
type StatusCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StatusCacheKey is the cache key of a player's resolved status. Usernames
// compare case-insensitively in the store, so the key does too.
func StatusCacheKey(username string) string {
	return statusCacheKeyPrefix + strings.ToLower(strings.TrimSpace(username))
}

// StatusResolver computes the effective plan of a player from the entitlement store.
type StatusResolver struct {
	subs   repository.SubscriptionRepository
	orders repository.OrderRepository
	cache  StatusCache
	ttl    time.Duration
}

// ResolverOption configures a StatusResolver.
type ResolverOption func(*StatusResolver)

// WithResolverCache caches resolved statuses for ttl.
func WithResolverCache(cache StatusCache, ttl time.Duration) ResolverOption {
	return func(r *StatusResolver) {
		r.cache = cache
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func NewStatusResolver(subs repository.SubscriptionRepository, orders repository.OrderRepository, opts ...ResolverOption) *StatusResolver {
	r := &StatusResolver{subs: subs, orders: orders, ttl: defaultStatusCacheTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the highest precedence active plan and the latest completed orders.
func (r *StatusResolver) Resolve(ctx context.Context, username string) (*SubscriptionStatus, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "is required"}
	}

	key := StatusCacheKey(username)
	if r.cache != nil {
		var cached SubscriptionStatus
		hit, err := r.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			log.Warnf("[Billing] Status cache read for %s failed: %v", username, err)
		} else if hit {
			return &cached, nil
		}
	}

	status := FreeStatus()

	active, err := r.subs.ListActive(ctx, username)
	if err != nil {
		return nil, upstream("query subscriptions", err)
	}
	if sub := strongest(active); sub != nil {
		status.SubscriptionType = entitlements.FromSubscriptionType(sub.SubscriptionType)
		status.SubscriptionEnd = sub.EndDate
	}

	orders, err := r.orders.ListRecentCompleted(ctx, username, recentOrdersLimit)
	if err != nil {
		return nil, upstream("query orders", err)
	}
	for _, o := range orders {
		status.Orders = append(status.Orders, OrderSummary{
			ProductType: o.ProductType,
			ProductID:   o.ProductID,
			Amount:      o.Amount,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
		})
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, key, status, r.ttl); err != nil {
			log.Warnf("[Billing] Status cache write for %s failed: %v", username, err)
		}
	}
	return status, nil
}

// strongest returns the active row with the highest ranked plan.
func strongest(subs []models.Subscription) *models.Subscription {
	var top *models.Subscription
	topRank := entitlements.PlanFree.Rank()
	for i := range subs {
		rank := entitlements.FromSubscriptionType(subs[i].SubscriptionType).Rank()
		if rank > topRank {
			top, topRank = &subs[i], rank
		}
	}
	return top
}

// ResolveOrFree never fails: any error degrades to the FREE plan so the UI keeps working.
func (r *StatusResolver) ResolveOrFree(ctx context.Context, username string) *SubscriptionStatus {
	status, err := r.Resolve(ctx, username)
	if err != nil {
		if !IsValidation(err) {
			log.Warnf("[Billing] Falling back to FREE for %s: %v", username, err)
		}
		return FreeStatus()
	}
	return status
}
