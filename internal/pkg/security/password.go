package security

import (
	"errors"
	"sync"
	"unicode"

	"github.com/ManuelReschke/CourseSeat/app/models"
)

const minPasswordLength = 8

var (
	ErrWeakPassword  = errors.New("password must be at least 8 characters and contain upper case, lower case, a digit and a special character")
	ErrPasswordReuse = errors.New("new password must differ from the current password")
)

// ValidatePassword applies the operator password policy.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// DummyPasswordCheck spends the same bcrypt work as a real comparison so an
// unknown email cannot be told apart by response time.
func DummyPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = models.HashPassword("courseseat-dummy-password")
	})
	_ = models.CheckPasswordHash(password, dummyHash)
}
