package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	ROLE_SUPER_ADMIN = "super_admin"
	ROLE_ADMIN       = "admin"
	ROLE_MODERATOR   = "moderator"

	PasswordHashCost = 10
)

// AdminUser is an operator allowed to manage sessions and enrollments.
type AdminUser struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Email              string     `gorm:"uniqueIndex;type:varchar(200);not null" json:"email" validate:"required,email,max=200"`
	Name               string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	PasswordHash       string     `gorm:"type:varchar(100);not null" json:"-"`
	Role               string     `gorm:"type:varchar(20);not null;default:'admin'" json:"role" validate:"oneof=super_admin admin moderator"`
	IsActive           bool       `gorm:"not null" json:"is_active"`
	MustChangePassword bool       `gorm:"not null" json:"must_change_password"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *AdminUser) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// NewAdminUser builds an operator account that has to rotate its initial
// password on first login.
func NewAdminUser(email, name, password, role string) (*AdminUser, error) {
	a := &AdminUser{
		Email:              NormalizeEmail(email),
		Name:               name,
		Role:               role,
		IsActive:           true,
		MustChangePassword: true,
	}
	if err := a.SetPassword(password); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (a *AdminUser) CheckPassword(password string) bool {
	return CheckPasswordHash(password, a.PasswordHash)
}

// SetPassword hashes and sets a new password
func (a *AdminUser) SetPassword(password string) error {
	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hashed
	return nil
}

// CanMutate reports whether the role may change sessions or enrollments.
func (a *AdminUser) CanMutate() bool {
	return RoleCanMutate(a.Role)
}

func RoleCanMutate(role string) bool {
	return role == ROLE_SUPER_ADMIN || role == ROLE_ADMIN
}
