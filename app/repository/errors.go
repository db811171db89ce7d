package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrSessionFull           = errors.New("session is full")
	ErrAlreadyEnrolled       = errors.New("already enrolled in this session")
	ErrSessionClosed         = errors.New("session is not open for enrollment")
	ErrPaymentRequired       = errors.New("session requires payment")
	ErrFreeSession           = errors.New("session is free")
	ErrPriceNotConfigured    = errors.New("session price is not configured")
	ErrCapacityConflict      = errors.New("capacity is below the number of successful enrollments")
	ErrInvalidCapacity       = errors.New("capacity must be at least 1")
	ErrSessionHasEnrollments = errors.New("session has successful enrollments")
	ErrInvalidTransition     = errors.New("payment status does not allow this transition")
	ErrOrderAlreadyAttached  = errors.New("enrollment already has an order")
	ErrAlreadyExists         = errors.New("record already exists")
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrRowIsReferenced = 1451
	mysqlErrNoReferencedRow = 1452
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrCheckConstraint = 3819
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrRowIsReferenced || myErr.Number == mysqlErrNoReferencedRow
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrCheckConstraint
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}

// isRetryableTxError reports lock contention that a fresh transaction may
// resolve.
func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
