package models

import "time"

const PaymentProviderRazorpay = "razorpay"

// PaymentWebhookEvent records verified provider deliveries so a redelivered
// event that was already processed can be acknowledged without touching
// enrollment state again.
type PaymentWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_payment_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_payment_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	OrderID         string     `gorm:"type:varchar(100);index" json:"order_id"`
	PaymentID       string     `gorm:"type:varchar(100)" json:"payment_id"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsSettled reports whether an earlier delivery of this event finished
// without error.
func (e *PaymentWebhookEvent) IsSettled() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
