package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/metrics"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/payment"
)

// OrderGateway mints external orders.
type OrderGateway interface {
	Configured() bool
	PublicKeyID() string
	CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error)
}

// Reservation is the result of a free enrollment.
type Reservation struct {
	EnrollmentID string `json:"enrollment_id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// ExternalOrder is what the browser needs to open the checkout.
type ExternalOrder struct {
	OrderID      string `json:"order_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	KeyID        string `json:"key_id"`
	EnrollmentID string `json:"enrollment_id"`
}

type Service struct {
	sessions    repository.SessionRepository
	enrollments repository.EnrollmentRepository
	gateway     OrderGateway
	notifier    payment.Notifier
	now         func() time.Time
}

func NewService(sessions repository.SessionRepository, enrollments repository.EnrollmentRepository, gateway OrderGateway, notifier payment.Notifier) *Service {
	return &Service{
		sessions:    sessions,
		enrollments: enrollments,
		gateway:     gateway,
		notifier:    notifier,
		now:         time.Now,
	}
}

// AvailableSessions lists upcoming sessions that still have free seats.
func (s *Service) AvailableSessions(ctx context.Context) ([]models.Session, error) {
	return s.sessions.ListAvailable(ctx, s.now())
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// ReserveFree enrolls a payer into a free session. The seat is taken and the
// enrollment is successful in the same transaction; the confirmation email
// is sent afterwards and its failure does not undo the enrollment.
func (s *Service) ReserveFree(ctx context.Context, sessionID string, payer models.Payer) (*Reservation, error) {
	if err := preparePayer(&payer); err != nil {
		return nil, err
	}

	created, _, err := s.enrollments.Reserve(ctx, sessionID, payer, repository.ReservationFree)
	if err != nil {
		metrics.Reservations.WithLabelValues("free", resultLabel(err)).Inc()
		return nil, err
	}
	metrics.Reservations.WithLabelValues("free", "ok").Inc()
	log.Infof("[Enrollment] Free enrollment %s created for session %s", created.ID, sessionID)

	if s.notifier != nil {
		if result, err := s.notifier.SendOnce(ctx, created.ID); err != nil {
			log.Warnf("[Enrollment] Confirmation email for %s: %s (%v)", created.ID, result, err)
		}
	}

	return &Reservation{
		EnrollmentID: created.ID,
		Status:       created.PaymentStatus,
		Amount:       created.AmountPaid,
		Currency:     created.Currency,
	}, nil
}

// CreateOrder reserves a pending enrollment for a paid session and mints an
// external order for the session price read inside the reservation. If the
// gateway call fails the pending enrollment is failed right away.
func (s *Service) CreateOrder(ctx context.Context, sessionID string, payer models.Payer) (*ExternalOrder, error) {
	if err := preparePayer(&payer); err != nil {
		return nil, err
	}
	if s.gateway == nil || !s.gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	pending, session, err := s.enrollments.Reserve(ctx, sessionID, payer, repository.ReservationPaid)
	if err != nil {
		metrics.Reservations.WithLabelValues("paid", resultLabel(err)).Inc()
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   pending.AmountPaid,
		Currency: pending.Currency,
		Receipt:  pending.ID,
		Notes: map[string]string{
			"enrollment_id": pending.ID,
			"session_id":    session.ID,
			"email":         pending.Email,
		},
	})
	if err != nil {
		s.failPending(pending.ID, err)
		metrics.Reservations.WithLabelValues("paid", "gateway_error").Inc()
		if errors.Is(err, ErrGateway) || errors.Is(err, ErrGatewayNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := s.enrollments.AttachOrder(ctx, pending.ID, order.ID); err != nil {
		s.failPending(pending.ID, err)
		metrics.Reservations.WithLabelValues("paid", "error").Inc()
		return nil, err
	}

	metrics.Reservations.WithLabelValues("paid", "ok").Inc()
	log.Infof("[Enrollment] Order %s created for enrollment %s (%d %s)", order.ID, pending.ID, pending.AmountPaid, pending.Currency)

	return &ExternalOrder{
		OrderID:      order.ID,
		Amount:       pending.AmountPaid,
		Currency:     pending.Currency,
		KeyID:        s.gateway.PublicKeyID(),
		EnrollmentID: pending.ID,
	}, nil
}

// failPending uses a fresh context so a cancelled request still releases
// the pending row.
func (s *Service) failPending(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.enrollments.FailPending(ctx, id, models.FailureReasonGateway); err != nil {
		log.Errorf("[Enrollment] Failed to mark enrollment %s failed after %v: %v", id, cause, err)
		return
	}
	log.Warnf("[Enrollment] Enrollment %s failed: %v", id, cause)
}

func preparePayer(payer *models.Payer) error {
	payer.Normalize()
	if err := payer.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrSessionFull):
		return "session_full"
	case errors.Is(err, ErrAlreadyEnrolled):
		return "already_enrolled"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPaymentRequired), errors.Is(err, ErrFreeSession):
		return "wrong_kind"
	}
	return "error"
}
