package enrollment

import (
	"errors"

	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/payment"
)

// Re-exported so callers of the service never import the storage layer for
// error matching.
var (
	ErrNotFound              = repository.ErrNotFound
	ErrSessionFull           = repository.ErrSessionFull
	ErrAlreadyEnrolled       = repository.ErrAlreadyEnrolled
	ErrSessionClosed         = repository.ErrSessionClosed
	ErrPaymentRequired       = repository.ErrPaymentRequired
	ErrFreeSession           = repository.ErrFreeSession
	ErrPriceNotConfigured    = repository.ErrPriceNotConfigured
	ErrCapacityConflict      = repository.ErrCapacityConflict
	ErrInvalidCapacity       = repository.ErrInvalidCapacity
	ErrSessionHasEnrollments = repository.ErrSessionHasEnrollments
	ErrInvalidTransition     = repository.ErrInvalidTransition

	ErrGateway              = payment.ErrGateway
	ErrGatewayNotConfigured = payment.ErrGatewayNotConfigured
	ErrInvalidSignature     = payment.ErrInvalidSignature

	ErrValidation = errors.New("validation failed")
)
