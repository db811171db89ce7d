package repository

import (
	"context"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"gorm.io/gorm"
)

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new admin activity repository instance
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Log(ctx context.Context, activity *models.AdminActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) ListRecent(ctx context.Context, limit int) ([]models.AdminActivity, error) {
	var activities []models.AdminActivity
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(listLimit(limit)).Find(&activities).Error
	return activities, err
}
