package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"gorm.io/gorm"
)

// ReservationKind tells Reserve which payment path the caller expects.
type ReservationKind int

const (
	ReservationFree ReservationKind = iota + 1
	ReservationPaid
)

// ConfirmOutcome distinguishes the one real pending to success transition
// from idempotent replays.
type ConfirmOutcome int

const (
	ConfirmTransitioned ConfirmOutcome = iota + 1
	ConfirmAlreadySuccess
)

// EmailClaim is the result of trying to take ownership of a confirmation send.
type EmailClaim int

const (
	EmailClaimAcquired EmailClaim = iota + 1
	EmailClaimAlreadySent
	EmailClaimInFlight
	EmailClaimNotEligible
)

// PaymentConfirmation carries a verified payment for an external order.
type PaymentConfirmation struct {
	OrderID    string
	PaymentID  string
	Signature  string
	VerifiedAt time.Time
}

// SessionFilter narrows admin session listings.
type SessionFilter struct {
	Status string
	Offset int
	Limit  int
}

// SessionUpdate holds the operator-editable session fields. Nil means unchanged.
type SessionUpdate struct {
	Title           *string
	Description     *string
	SessionDate     *time.Time
	DurationMinutes *int
	ZoomLink        *string
	Price           *int64
	Currency        *string
	IsFree          *bool
	Status          *string
}

// EnrollmentFilter narrows admin enrollment listings.
type EnrollmentFilter struct {
	SessionID     string
	PaymentStatus string
	Email         string
	Offset        int
	Limit         int
}

// SessionRepository owns the capacity counters of sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, filter SessionFilter) ([]models.Session, error)
	ListAvailable(ctx context.Context, now time.Time) ([]models.Session, error)
	Update(ctx context.Context, id string, update SessionUpdate) (*models.Session, error)
	UpdateCapacity(ctx context.Context, id string, maxCapacity int) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	CountSuccessful(ctx context.Context, id string) (int64, error)
}

// EnrollmentRepository implements the reservation and payment state machine.
// Every mutating method is a single transaction built on conditional updates.
type EnrollmentRepository interface {
	Reserve(ctx context.Context, sessionID string, payer models.Payer, kind ReservationKind) (*models.Enrollment, *models.Session, error)
	AttachOrder(ctx context.Context, enrollmentID, orderID string) error
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Enrollment, error)
	List(ctx context.Context, filter EnrollmentFilter) ([]models.Enrollment, error)
	ConfirmPayment(ctx context.Context, confirmation PaymentConfirmation) (*models.Enrollment, ConfirmOutcome, error)
	FailPayment(ctx context.Context, orderID, paymentID, reason string) (*models.Enrollment, bool, error)
	FailPending(ctx context.Context, id, reason string) (bool, error)
	Refund(ctx context.Context, id string, at time.Time) (*models.Enrollment, error)
	ExpireStalePending(ctx context.Context, createdBefore time.Time) (int64, error)
	ClaimEmail(ctx context.Context, id string, now time.Time, staleBefore time.Time) (EmailClaim, error)
	MarkEmailSent(ctx context.Context, id, messageID string, at time.Time) error
	ReleaseEmailClaim(ctx context.Context, id string) error
}

// AdminUserRepository defines the interface for operator accounts
type AdminUserRepository interface {
	Create(ctx context.Context, admin *models.AdminUser) error
	GetByID(ctx context.Context, id uint) (*models.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Count(ctx context.Context) (int64, error)
}

// WebhookEventRepository stores provider deliveries for idempotent processing.
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// ActivityRepository records the operator audit trail.
type ActivityRepository interface {
	Log(ctx context.Context, activity *models.AdminActivity) error
	ListRecent(ctx context.Context, limit int) ([]models.AdminActivity, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Session      SessionRepository
	Enrollment   EnrollmentRepository
	AdminUser    AdminUserRepository
	WebhookEvent WebhookEventRepository
	Activity     ActivityRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Session:      NewSessionRepository(db),
		Enrollment:   NewEnrollmentRepository(db),
		AdminUser:    NewAdminUserRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Activity:     NewActivityRepository(db),
	}
}
