package repository

import (
	"context"
	"time"

	"github.com/jackmine/storefront/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Upsert inserts the row or updates the existing one keyed by (username, subscription_type).
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "username"},
			{Name: "subscription_type"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"external_customer_ref",
			"external_subscription_ref",
			"end_date",
			"status",
			"last_event_ref",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// LastInsertId is unreliable after ON DUPLICATE KEY UPDATE, reload by the unique key.
	var stored models.Subscription
	if err := r.db.WithContext(ctx).
		Where("username = ? AND subscription_type = ?", sub.Username, sub.SubscriptionType).
		First(&stored).Error; err != nil {
		return err
	}
	*sub = stored
	return nil
}

// ListActive returns the active subscription rows of a player. Picking the
// strongest tier is left to the caller, subscription_type does not sort by precedence.
func (r *subscriptionRepository) ListActive(ctx context.Context, username string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("username = ? AND status = ?", username, models.SubscriptionStatusActive).
		Order("id").
		Find(&subs).Error
	return subs, err
}

// FindByExternalRef returns the row tracking a provider subscription, or nil when none does.
func (r *subscriptionRepository) FindByExternalRef(ctx context.Context, externalSubscriptionRef string) (*models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("external_subscription_ref = ?", externalSubscriptionRef).
		Order("updated_at DESC").
		Limit(1).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// UpdateByExternalRef applies a provider-driven status change to every row of the provider subscription.
func (r *subscriptionRepository) UpdateByExternalRef(ctx context.Context, externalSubscriptionRef string, update SubscriptionUpdate) (int64, error) {
	updates := map[string]interface{}{
		"status":         update.Status,
		"last_event_ref": update.LastEventRef,
		"updated_at":     time.Now(),
	}
	if update.EndDate != nil {
		updates["end_date"] = *update.EndDate
	}
	tx := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("external_subscription_ref = ?", externalSubscriptionRef).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// ExpireOverdue deactivates active rows whose period ended before cutoff.
func (r *subscriptionRepository) ExpireOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", models.SubscriptionStatusActive, cutoff).
		Updates(map[string]interface{}{
			"status":     models.SubscriptionStatusInactive,
			"updated_at": time.Now(),
		})
	return tx.RowsAffected, tx.Error
}
