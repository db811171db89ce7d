package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SessionStatusUpcoming  = "upcoming"
	SessionStatusOngoing   = "ongoing"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"

	DefaultCurrency = "INR"
)

// Session is a scheduled course session with a bounded number of seats.
// CurrentEnrollments only ever moves inside repository transactions.
type Session struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title              string    `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=3,max=255"`
	Description        string    `gorm:"type:text" json:"description" validate:"max=5000"`
	SessionDate        time.Time `gorm:"not null;index" json:"session_date" validate:"required"`
	DurationMinutes    int       `gorm:"not null;default:60" json:"duration_minutes" validate:"min=1,max=1440"`
	ZoomLink           string    `gorm:"type:varchar(500)" json:"zoom_link,omitempty" validate:"omitempty,url,max=500"`
	MaxCapacity        int       `gorm:"not null;check:chk_sessions_max_capacity,max_capacity > 0" json:"max_capacity" validate:"min=1"`
	CurrentEnrollments int       `gorm:"not null;default:0;check:chk_sessions_current_enrollments,current_enrollments >= 0 AND current_enrollments <= max_capacity" json:"current_enrollments"`
	Price              int64     `gorm:"not null;default:0;check:chk_sessions_price,price >= 0" json:"price" validate:"min=0"`
	Currency           string    `gorm:"type:varchar(3);not null;default:'INR'" json:"currency" validate:"len=3"`
	IsFree             bool      `gorm:"not null;default:false" json:"is_free"`
	Status             string    `gorm:"type:varchar(20);not null;default:'upcoming';index" json:"status" validate:"oneof=upcoming ongoing completed cancelled"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Session) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Currency == "" {
		s.Currency = DefaultCurrency
	}
	if s.Status == "" {
		s.Status = SessionStatusUpcoming
	}
	s.NormalizePricing()
	return nil
}

// NormalizePricing applies the free policy: a session is free when flagged
// as such or when it has no price. Free sessions never carry a price.
func (s *Session) NormalizePricing() {
	s.IsFree = s.IsFree || s.Price == 0
	if s.IsFree {
		s.Price = 0
	}
}

// IsOpen reports whether the session still accepts reservations.
func (s *Session) IsOpen() bool {
	return s.Status != SessionStatusCancelled && s.Status != SessionStatusCompleted
}

// AvailableSeats returns the number of seats not yet spent.
func (s *Session) AvailableSeats() int {
	if n := s.MaxCapacity - s.CurrentEnrollments; n > 0 {
		return n
	}
	return 0
}

func (s *Session) IsFull() bool {
	return s.CurrentEnrollments >= s.MaxCapacity
}
