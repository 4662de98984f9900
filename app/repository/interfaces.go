package repository

import (
	"context"
	"time"

	"github.com/jackmine/storefront/app/models"
	"gorm.io/gorm"
)

// SubscriptionRepository defines the entitlement store operations on subscriptions.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	ListActive(ctx context.Context, username string) ([]models.Subscription, error)
	FindByExternalRef(ctx context.Context, externalSubscriptionRef string) (*models.Subscription, error)
	UpdateByExternalRef(ctx context.Context, externalSubscriptionRef string, update SubscriptionUpdate) (int64, error)
	ExpireOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}

// OrderRepository defines the entitlement store operations on one-time orders.
type OrderRepository interface {
	CreateIfNotExists(ctx context.Context, order *models.Order) (bool, error)
	ListRecentCompleted(ctx context.Context, username string, limit int) ([]models.Order, error)
}

// WebhookEventRepository stores provider deliveries for deduplication and audit.
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// SubscriptionUpdate carries the mutable fields of a subscription row.
// A nil EndDate leaves the stored end date untouched.
type SubscriptionUpdate struct {
	Status       string
	EndDate      *time.Time
	LastEventRef string
}

// Repositories struct holds all repository instances
type Repositories struct {
	Subscription SubscriptionRepository
	Order        OrderRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Subscription: NewSubscriptionRepository(db),
		Order:        NewOrderRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
