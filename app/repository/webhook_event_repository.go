package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"gorm.io/gorm"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a webhook delivery repository backed by GORM.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists stores a delivery keyed by (provider, provider_event_id).
// A unique violation means the delivery was seen before; the stored row is
// returned in both cases.
func (r *webhookEventRepository) CreateIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	db := r.db.WithContext(ctx)

	created := true
	if err := db.Create(event).Error; err != nil {
		if !isUniqueViolation(err) {
			return false, nil, err
		}
		created = false
	}

	var stored models.PaymentWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
