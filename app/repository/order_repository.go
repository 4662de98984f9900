package repository

import (
	"context"

	"github.com/jackmine/storefront/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// CreateIfNotExists inserts the order unless one with the same external session ref exists.
// It reports whether a new row was written.
func (r *orderRepository) CreateIfNotExists(ctx context.Context, order *models.Order) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_session_ref"}},
		DoNothing: true,
	}).Create(order)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListRecentCompleted returns the newest completed orders of a player
func (r *orderRepository) ListRecentCompleted(ctx context.Context, username string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("username = ? AND status = ?", username, models.OrderStatusCompleted).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
