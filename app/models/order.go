package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ProductTypeSubscription = "subscription"
	ProductTypeItem         = "item"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
)

// Order records a one-time purchase. Rows are append-only; the external
// session ref is unique so a redelivered checkout event cannot create a
// second order.
type Order struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Email              string    `gorm:"type:varchar(200);not null;default:''" json:"email" validate:"omitempty,email,max=200"`
	Username           string    `gorm:"type:varchar(64);not null;index:idx_orders_username_status,priority:1" json:"username" validate:"required,max=64"`
	ExternalSessionRef string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_orders_external_session_ref" json:"external_session_ref" validate:"required"`
	ProductType        string    `gorm:"type:varchar(16);not null" json:"product_type" validate:"required,oneof=subscription item"`
	ProductID          string    `gorm:"type:varchar(100);not null" json:"product_id" validate:"required"`
	Amount             int64     `gorm:"not null;default:0" json:"amount" validate:"gte=0"`
	Status             string    `gorm:"type:varchar(16);not null;default:'pending';index:idx_orders_username_status,priority:2" json:"status" validate:"required,oneof=pending completed"`
	LastEventRef       string    `gorm:"type:varchar(191);not null;default:''" json:"last_event_ref"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (o *Order) Validate() error {
	v := validator.New()

	return v.Struct(o)
}
