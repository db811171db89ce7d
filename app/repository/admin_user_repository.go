package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"gorm.io/gorm"
)

// adminUserRepository implements the AdminUserRepository interface
type adminUserRepository struct {
	db *gorm.DB
}

// NewAdminUserRepository creates a new admin user repository instance
func NewAdminUserRepository(db *gorm.DB) AdminUserRepository {
	return &adminUserRepository{db: db}
}

// Create creates a new admin user in the database
func (r *adminUserRepository) Create(ctx context.Context, admin *models.AdminUser) error {
	if err := r.db.WithContext(ctx).Create(admin).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID retrieves an admin user by ID
func (r *adminUserRepository) GetByID(ctx context.Context, id uint) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := r.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &admin, nil
}

// GetByEmail retrieves an admin user by email address
func (r *adminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := r.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&admin).Error; err != nil {
		return nil, notFound(err)
	}
	return &admin, nil
}

// UpdatePassword stores a new hash and clears the forced rotation flag.
func (r *adminUserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash":        passwordHash,
			"must_change_password": false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *adminUserRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

func (r *adminUserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AdminUser{}).Count(&count).Error
	return count, err
}
