package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SubscriptionTypeVIP = "vip"
	SubscriptionTypeTop = "top"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription mirrors a provider subscription for a player. A player owns at
// most one row per subscription type; webhook redeliveries update it in place.
type Subscription struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	Username                string     `gorm:"type:varchar(64);not null;index:ux_subscriptions_username_type,unique,priority:1;index:idx_subscriptions_username_status,priority:1" json:"username" validate:"required,max=64"`
	Email                   string     `gorm:"type:varchar(200);not null;default:''" json:"email" validate:"omitempty,email,max=200"`
	SubscriptionType        string     `gorm:"type:varchar(16);not null;index:ux_subscriptions_username_type,unique,priority:2" json:"subscription_type" validate:"required,oneof=vip top"`
	ExternalCustomerRef     string     `gorm:"type:varchar(191);not null;default:''" json:"external_customer_ref"`
	ExternalSubscriptionRef string     `gorm:"type:varchar(191);not null;default:'';index" json:"external_subscription_ref"`
	EndDate                 *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	Status                  string     `gorm:"type:varchar(16);not null;default:'active';index:idx_subscriptions_username_status,priority:2" json:"status" validate:"required,oneof=active inactive canceled"`
	LastEventRef            string     `gorm:"type:varchar(191);not null;default:''" json:"last_event_ref"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// IsActive reports whether the row currently grants its tier.
func (s *Subscription) IsActive() bool {
	return strings.EqualFold(s.Status, SubscriptionStatusActive)
}
