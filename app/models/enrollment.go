package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusSuccess  = "success"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Failure reasons stored on enrollments that left the pending state without
// a successful payment.
const (
	FailureReasonProvider         = "provider_failed"
	FailureReasonGateway          = "gateway_error"
	FailureReasonExpired          = "expired"
	FailureReasonSessionFull      = "session_full_after_payment"
	FailureReasonDuplicateSuccess = "duplicate_success"
)

const (
	FreeOrderPrefix        = "free_"
	maxFailureReasonLength = 255
)

// Enrollment is one payer's attempt to hold a seat in a session.
//
// SuccessSessionID mirrors SessionID only while PaymentStatus is success. The
// unique index over (success_session_id, email) is what guarantees at most one
// successful enrollment per payer and session; NULLs never collide.
type Enrollment struct {
	ID                  string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID           string     `gorm:"type:varchar(36);not null;index:idx_enrollments_session_status,priority:1" json:"session_id"`
	Session             *Session   `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"session,omitempty"`
	FullName            string     `gorm:"type:varchar(150);not null" json:"full_name"`
	Email               string     `gorm:"type:varchar(200);not null;index;uniqueIndex:idx_enrollments_single_success,priority:2" json:"email"`
	Phone               string     `gorm:"type:varchar(30)" json:"phone"`
	Company             string     `gorm:"type:varchar(200)" json:"company,omitempty"`
	LinkedInURL         string     `gorm:"column:linkedin_url;type:varchar(500)" json:"linkedin_url,omitempty"`
	UTMSource           string     `gorm:"type:varchar(100)" json:"utm_source,omitempty"`
	UTMMedium           string     `gorm:"type:varchar(100)" json:"utm_medium,omitempty"`
	UTMCampaign         string     `gorm:"type:varchar(100)" json:"utm_campaign,omitempty"`
	AmountPaid          int64      `gorm:"not null;default:0" json:"amount_paid"`
	Currency            string     `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	OrderID             *string    `gorm:"type:varchar(100);uniqueIndex:idx_enrollments_order_id" json:"order_id,omitempty"`
	PaymentID           string     `gorm:"type:varchar(100);index" json:"payment_id,omitempty"`
	PaymentSignature    string     `gorm:"type:varchar(255)" json:"-"`
	PaymentStatus       string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_enrollments_session_status,priority:2;index:idx_enrollments_status_created,priority:1" json:"payment_status"`
	FailureReason       string     `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	SuccessSessionID    *string    `gorm:"type:varchar(36);uniqueIndex:idx_enrollments_single_success,priority:1" json:"-"`
	EmailSent           bool       `gorm:"not null;default:false" json:"email_sent"`
	EmailSentAt         *time.Time `json:"email_sent_at,omitempty"`
	ConfirmationEmailID string     `gorm:"type:varchar(255)" json:"confirmation_email_id,omitempty"`
	EmailClaimedAt      *time.Time `json:"-"`
	PaymentVerifiedAt   *time.Time `json:"payment_verified_at,omitempty"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime;index:idx_enrollments_status_created,priority:2" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Currency == "" {
		e.Currency = DefaultCurrency
	}
	e.Email = NormalizeEmail(e.Email)
	return nil
}

func (e *Enrollment) IsSuccess() bool {
	return e.PaymentStatus == PaymentStatusSuccess
}

func (e *Enrollment) IsPending() bool {
	return e.PaymentStatus == PaymentStatusPending
}

// OrderRef returns the external order id or an empty string.
func (e *Enrollment) OrderRef() string {
	if e.OrderID == nil {
		return ""
	}
	return *e.OrderID
}

// CanTransition reports whether the payment state machine allows moving
// from one status to another.
func CanTransition(from, to string) bool {
	switch from {
	case PaymentStatusPending:
		return to == PaymentStatusSuccess || to == PaymentStatusFailed
	case PaymentStatusSuccess:
		return to == PaymentStatusRefunded
	}
	return false
}

// NormalizeEmail trims and lower-cases an address so that uniqueness is
// evaluated on a canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TruncateReason keeps failure reasons within the column size.
func TruncateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxFailureReasonLength {
		return reason[:maxFailureReasonLength]
	}
	return reason
}

// NewFreeOrderID mints the synthetic order reference used by free enrollments.
func NewFreeOrderID() string {
	return FreeOrderPrefix + uuid.NewString()
}
