package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 100

// sessionRepository implements the SessionRepository interface
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository instance
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	session.CurrentEnrollments = 0
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (r *sessionRepository) List(ctx context.Context, filter SessionFilter) ([]models.Session, error) {
	query := r.db.WithContext(ctx).Model(&models.Session{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	var sessions []models.Session
	err := query.Order("session_date ASC").
		Offset(filter.Offset).
		Limit(listLimit(filter.Limit)).
		Find(&sessions).Error
	return sessions, err
}

// ListAvailable returns upcoming sessions in the future that still have seats.
func (r *sessionRepository) ListAvailable(ctx context.Context, now time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND session_date > ? AND current_enrollments < max_capacity", models.SessionStatusUpcoming, now).
		Order("session_date ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) Update(ctx context.Context, id string, update SessionUpdate) (*models.Session, error) {
	var updated models.Session
	err := transaction(ctx, r.db, func(tx *gorm.DB) error {
		var session models.Session
		if err := lockSession(tx, id, &session); err != nil {
			return err
		}
		update.Apply(&session)
		session.NormalizePricing()
		if err := session.Validate(); err != nil {
			return err
		}
		fields := map[string]interface{}{
			"title":            session.Title,
			"description":      session.Description,
			"session_date":     session.SessionDate,
			"duration_minutes": session.DurationMinutes,
			"zoom_link":        session.ZoomLink,
			"price":            session.Price,
			"currency":         session.Currency,
			"is_free":          session.IsFree,
			"status":           session.Status,
		}
		if err := tx.Model(&models.Session{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpdateCapacity changes max_capacity only if it stays at or above the live
// number of successful enrollments. The update is conditional on the current
// seat counter, so a seat spent after the count still rejects the change.
func (r *sessionRepository) UpdateCapacity(ctx context.Context, id string, maxCapacity int) (*models.Session, error) {
	if maxCapacity < 1 {
		return nil, ErrInvalidCapacity
	}

	var updated models.Session
	err := transaction(ctx, r.db, func(tx *gorm.DB) error {
		var session models.Session
		if err := lockSession(tx, id, &session); err != nil {
			return err
		}

		successful, err := countSuccessful(tx, id)
		if err != nil {
			return err
		}
		if successful > int64(maxCapacity) {
			return ErrCapacityConflict
		}

		res := tx.Model(&models.Session{}).
			Where("id = ? AND current_enrollments <= ?", id, maxCapacity).
			Update("max_capacity", maxCapacity)
		if res.Error != nil {
			if isCheckViolation(res.Error) {
				return ErrCapacityConflict
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCapacityConflict
		}

		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a session together with its unpaid enrollments. The
// enrollments foreign key restricts deletion while a successful enrollment
// still references the session.
func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	return transaction(ctx, r.db, func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.Select("id").Where("id = ?", id).First(&session).Error; err != nil {
			return notFound(err)
		}

		if err := tx.Where("session_id = ? AND payment_status <> ?", id, models.PaymentStatusSuccess).
			Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}

		if err := tx.Where("id = ?", id).Delete(&models.Session{}).Error; err != nil {
			if isForeignKeyViolation(err) {
				return ErrSessionHasEnrollments
			}
			return err
		}
		return nil
	})
}

func (r *sessionRepository) CountSuccessful(ctx context.Context, id string) (int64, error) {
	return countSuccessful(r.db.WithContext(ctx), id)
}

func countSuccessful(db *gorm.DB, sessionID string) (int64, error) {
	var count int64
	err := db.Model(&models.Enrollment{}).
		Where("session_id = ? AND payment_status = ?", sessionID, models.PaymentStatusSuccess).
		Count(&count).Error
	return count, err
}

// lockSession loads a session with a row lock where the dialect supports one.
func lockSession(tx *gorm.DB, id string, session *models.Session) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Apply copies the set fields onto s. Changing the price without an explicit
// free flag clears the flag so NormalizePricing can derive it again.
func (u SessionUpdate) Apply(s *models.Session) {
	if u.Title != nil {
		s.Title = *u.Title
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.SessionDate != nil {
		s.SessionDate = *u.SessionDate
	}
	if u.DurationMinutes != nil {
		s.DurationMinutes = *u.DurationMinutes
	}
	if u.ZoomLink != nil {
		s.ZoomLink = *u.ZoomLink
	}
	if u.Price != nil {
		s.Price = *u.Price
		if u.IsFree == nil {
			s.IsFree = false
		}
	}
	if u.Currency != nil {
		s.Currency = *u.Currency
	}
	if u.IsFree != nil {
		s.IsFree = *u.IsFree
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
}

func listLimit(limit int) int {
	if limit <= 0 || limit > defaultListLimit {
		return defaultListLimit
	}
	return limit
}
