package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errDuplicateSuccess = errors.New("payer already holds a successful enrollment")
	errSeatUnavailable  = errors.New("no seat left for confirmed payment")
)

// enrollmentRepository implements the EnrollmentRepository interface
type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository creates a new enrollment repository instance
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

// Reserve checks the session, the seat count and the payer's existing
// success in one transaction and inserts the enrollment. Free sessions
// consume the seat and start in success; paid sessions start in pending and
// consume the seat only when the payment is confirmed.
func (r *enrollmentRepository) Reserve(ctx context.Context, sessionID string, payer models.Payer, kind ReservationKind) (*models.Enrollment, *models.Session, error) {
	var (
		created models.Enrollment
		session models.Session
	)
	err := transaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := lockSession(tx, sessionID, &session); err != nil {
			return err
		}
		if !session.IsOpen() {
			return ErrSessionClosed
		}
		switch {
		case kind == ReservationFree && !session.IsFree:
			return ErrPaymentRequired
		case kind == ReservationPaid && session.IsFree:
			return ErrFreeSession
		}
		if session.IsFull() {
			return ErrSessionFull
		}

		var existing int64
		if err := tx.Model(&models.Enrollment{}).
			Where("session_id = ? AND email = ? AND payment_status = ?", sessionID, payer.Email, models.PaymentStatusSuccess).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyEnrolled
		}

		enrollment := models.Enrollment{
			SessionID: session.ID,
			Currency:  session.Currency,
		}
		payer.ApplyTo(&enrollment)

		if session.IsFree {
			res := tx.Model(&models.Session{}).
				Where("id = ? AND current_enrollments < max_capacity AND status NOT IN ?", sessionID,
					[]string{models.SessionStatusCancelled, models.SessionStatusCompleted}).
				Update("current_enrollments", gorm.Expr("current_enrollments + 1"))
			if res.Error != nil {
				if isCheckViolation(res.Error) {
					return ErrSessionFull
				}
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrSessionFull
			}
			session.CurrentEnrollments++

			now := time.Now()
			orderID := models.NewFreeOrderID()
			successSessionID := session.ID
			enrollment.PaymentStatus = models.PaymentStatusSuccess
			enrollment.SuccessSessionID = &successSessionID
			enrollment.OrderID = &orderID
			enrollment.PaymentVerifiedAt = &now
		} else {
			if session.Price <= 0 {
				return ErrPriceNotConfigured
			}
			enrollment.PaymentStatus = models.PaymentStatusPending
			enrollment.AmountPaid = session.Price
		}

		if err := tx.Create(&enrollment).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyEnrolled
			}
			return err
		}
		created = enrollment
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &created, &session, nil
}

// AttachOrder binds an external order to a pending enrollment exactly once.
func (r *enrollmentRepository) AttachOrder(ctx context.Context, enrollmentID, orderID string) error {
	res := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND order_id IS NULL AND payment_status = ?", enrollmentID, models.PaymentStatusPending).
		Update("order_id", orderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderAlreadyAttached
	}
	return nil
}

func (r *enrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).Preload("Session").Where("id = ?", id).First(&enrollment).Error; err != nil {
		return nil, notFound(err)
	}
	return &enrollment, nil
}

func (r *enrollmentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&enrollment).Error; err != nil {
		return nil, notFound(err)
	}
	return &enrollment, nil
}

func (r *enrollmentRepository) List(ctx context.Context, filter EnrollmentFilter) ([]models.Enrollment, error) {
	query := r.db.WithContext(ctx).Model(&models.Enrollment{})
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.Email != "" {
		query = query.Where("email = ?", models.NormalizeEmail(filter.Email))
	}
	var enrollments []models.Enrollment
	err := query.Order("created_at DESC").
		Offset(filter.Offset).
		Limit(listLimit(filter.Limit)).
		Find(&enrollments).Error
	return enrollments, err
}

// ConfirmPayment is the single compare-and-set used by every confirmation
// path. The status flip is conditional on pending and the seat is spent in
// the same transaction, so concurrent or repeated confirmations for one
// order produce exactly one transition.
func (r *enrollmentRepository) ConfirmPayment(ctx context.Context, c PaymentConfirmation) (*models.Enrollment, ConfirmOutcome, error) {
	var (
		result       models.Enrollment
		outcome      ConfirmOutcome
		enrollmentID string
	)
	err := transaction(ctx, r.db, func(tx *gorm.DB) error {
		outcome = 0
		var enrollment models.Enrollment
		if err := lockEnrollment(tx, "order_id = ?", c.OrderID, &enrollment); err != nil {
			return err
		}
		enrollmentID = enrollment.ID
		result = enrollment

		switch enrollment.PaymentStatus {
		case models.PaymentStatusSuccess:
			outcome = ConfirmAlreadySuccess
			return nil
		case models.PaymentStatusPending:
		default:
			return ErrInvalidTransition
		}

		fields := map[string]interface{}{
			"payment_status":      models.PaymentStatusSuccess,
			"success_session_id":  enrollment.SessionID,
			"payment_verified_at": c.VerifiedAt,
			"failure_reason":      "",
		}
		if c.PaymentID != "" {
			fields["payment_id"] = c.PaymentID
		}
		if c.Signature != "" {
			fields["payment_signature"] = c.Signature
		}
		res := tx.Model(&models.Enrollment{}).
			Where("id = ? AND payment_status = ?", enrollment.ID, models.PaymentStatusPending).
			Updates(fields)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return errDuplicateSuccess
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := lockEnrollment(tx, "id = ?", enrollment.ID, &result); err != nil {
				return err
			}
			if result.IsSuccess() {
				outcome = ConfirmAlreadySuccess
				return nil
			}
			return ErrInvalidTransition
		}

		seat := tx.Model(&models.Session{}).
			Where("id = ? AND current_enrollments < max_capacity", enrollment.SessionID).
			Update("current_enrollments", gorm.Expr("current_enrollments + 1"))
		if seat.Error != nil {
			if isCheckViolation(seat.Error) {
				return errSeatUnavailable
			}
			return seat.Error
		}
		if seat.RowsAffected == 0 {
			return errSeatUnavailable
		}

		outcome = ConfirmTransitioned
		return tx.Where("id = ?", enrollment.ID).First(&result).Error
	})

	switch {
	case errors.Is(err, errDuplicateSuccess):
		return r.rejectConfirmation(ctx, enrollmentID, models.FailureReasonDuplicateSuccess, ErrAlreadyEnrolled)
	case errors.Is(err, errSeatUnavailable):
		return r.rejectConfirmation(ctx, enrollmentID, models.FailureReasonSessionFull, ErrSessionFull)
	case err != nil:
		if enrollmentID != "" {
			return &result, 0, err
		}
		return nil, 0, err
	}
	return &result, outcome, nil
}

// rejectConfirmation fails a paid enrollment whose confirmation could not be
// honoured after the rollback of the success transition.
func (r *enrollmentRepository) rejectConfirmation(ctx context.Context, id, reason string, cause error) (*models.Enrollment, ConfirmOutcome, error) {
	if _, err := r.FailPending(ctx, id, reason); err != nil {
		return nil, 0, err
	}
	enrollment, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return enrollment, 0, cause
}

// FailPayment moves a pending enrollment to failed. A success is never
// downgraded; the bool reports whether this call changed the row.
func (r *enrollmentRepository) FailPayment(ctx context.Context, orderID, paymentID, reason string) (*models.Enrollment, bool, error) {
	var (
		result  models.Enrollment
		changed bool
	)
	err := transaction(ctx, r.db, func(tx *gorm.DB) error {
		changed = false
		if err := lockEnrollment(tx, "order_id = ?", orderID, &result); err != nil {
			return err
		}
		fields := map[string]interface{}{
			"payment_status": models.PaymentStatusFailed,
			"failure_reason": models.TruncateReason(reason),
		}
		if paymentID != "" {
			fields["payment_id"] = paymentID
		}
		res := tx.Model(&models.Enrollment{}).
			Where("id = ? AND payment_status = ?", result.ID, models.PaymentStatusPending).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		return lockEnrollment(tx, "id = ?", result.ID, &result)
	})
	if err != nil {
		return nil, false, err
	}
	return &result, changed, nil
}

func (r *enrollmentRepository) FailPending(ctx context.Context, id, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusFailed,
			"failure_reason": models.TruncateReason(reason),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Refund records an out-of-band refund and releases the seat.
func (r *enrollmentRepository) Refund(ctx context.Context, id string, at time.Time) (*models.Enrollment, error) {
	var result models.Enrollment
	err := transaction(ctx, r.db, func(tx *gorm.DB) error {
		var enrollment models.Enrollment
		if err := lockEnrollment(tx, "id = ?", id, &enrollment); err != nil {
			return err
		}
		if !models.CanTransition(enrollment.PaymentStatus, models.PaymentStatusRefunded) {
			return ErrInvalidTransition
		}

		res := tx.Model(&models.Enrollment{}).
			Where("id = ? AND payment_status = ?", id, models.PaymentStatusSuccess).
			Updates(map[string]interface{}{
				"payment_status":     models.PaymentStatusRefunded,
				"success_session_id": nil,
				"refunded_at":        at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		if err := tx.Model(&models.Session{}).
			Where("id = ? AND current_enrollments > 0", enrollment.SessionID).
			Update("current_enrollments", gorm.Expr("current_enrollments - 1")).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&result).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExpireStalePending fails every pending enrollment created before the cutoff.
func (r *enrollmentRepository) ExpireStalePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("payment_status = ? AND created_at < ?", models.PaymentStatusPending, createdBefore.UTC()).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusFailed,
			"failure_reason": models.FailureReasonExpired,
		})
	return res.RowsAffected, res.Error
}

// ClaimEmail takes ownership of the confirmation send for a successful
// enrollment. A claim older than staleBefore is considered abandoned.
func (r *enrollmentRepository) ClaimEmail(ctx context.Context, id string, now time.Time, staleBefore time.Time) (EmailClaim, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Enrollment{}).
		Where("id = ? AND payment_status = ? AND email_sent = ? AND (email_claimed_at IS NULL OR email_claimed_at < ?)",
			id, models.PaymentStatusSuccess, false, staleBefore.UTC()).
		Update("email_claimed_at", now.UTC())
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		return EmailClaimAcquired, nil
	}

	var enrollment models.Enrollment
	if err := db.Select("id", "payment_status", "email_sent").Where("id = ?", id).First(&enrollment).Error; err != nil {
		return 0, notFound(err)
	}
	switch {
	case enrollment.EmailSent:
		return EmailClaimAlreadySent, nil
	case !enrollment.IsSuccess():
		return EmailClaimNotEligible, nil
	default:
		return EmailClaimInFlight, nil
	}
}

func (r *enrollmentRepository) MarkEmailSent(ctx context.Context, id, messageID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"email_sent":            true,
			"email_sent_at":         at,
			"confirmation_email_id": messageID,
		}).Error
}

func (r *enrollmentRepository) ReleaseEmailClaim(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND email_sent = ?", id, false).
		Update("email_claimed_at", nil).Error
}

// lockEnrollment loads an enrollment with a row lock so that reads after a
// competing commit see the committed state instead of the snapshot.
func lockEnrollment(tx *gorm.DB, query string, arg interface{}, enrollment *models.Enrollment) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, arg).First(enrollment).Error
	return notFound(err)
}
