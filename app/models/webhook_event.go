package models

import "time"

const WebhookProviderStripe = "stripe"

// WebhookEvent stores provider webhook payloads with deduplication metadata.
// Entitlement rows reference ProviderEventID so every mutation can be traced
// back to the delivery that caused it.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// WasProcessed reports whether an earlier delivery completed without error.
func (e *WebhookEvent) WasProcessed() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
