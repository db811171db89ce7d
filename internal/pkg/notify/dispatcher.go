package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/mail"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/metrics"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/money"
)

// Result is the outcome of a SendOnce call.
type Result string

const (
	Sent        Result = "sent"
	AlreadySent Result = "already_sent"
	Failed      Result = "failed"
)

const (
	DefaultClaimTTL    = 5 * time.Minute
	DefaultSendTimeout = 10 * time.Second
)

var (
	ErrDelivery    = errors.New("confirmation email delivery failed")
	ErrNotEligible = errors.New("enrollment is not eligible for a confirmation email")
)

// Dispatcher sends the enrollment confirmation email at most once per
// enrollment, tracked by the email_sent flag on the row.
type Dispatcher struct {
	enrollments repository.EnrollmentRepository
	mailer      mail.Mailer
	ClaimTTL    time.Duration
	SendTimeout time.Duration
	now         func() time.Time
}

func NewDispatcher(enrollments repository.EnrollmentRepository, mailer mail.Mailer) *Dispatcher {
	return &Dispatcher{
		enrollments: enrollments,
		mailer:      mailer,
		ClaimTTL:    DefaultClaimTTL,
		SendTimeout: DefaultSendTimeout,
		now:         time.Now,
	}
}

// SendOnce claims the confirmation send for a successful enrollment and
// delivers it. A failed delivery releases the claim so an operator resend can
// try again; it is never retried automatically.
func (d *Dispatcher) SendOnce(ctx context.Context, enrollmentID string) (Result, error) {
	now := d.now()
	claim, err := d.enrollments.ClaimEmail(ctx, enrollmentID, now, now.Add(-d.ClaimTTL))
	if err != nil {
		metrics.ConfirmationEmails.WithLabelValues(string(Failed)).Inc()
		return Failed, err
	}

	switch claim {
	case repository.EmailClaimAlreadySent, repository.EmailClaimInFlight:
		metrics.ConfirmationEmails.WithLabelValues(string(AlreadySent)).Inc()
		return AlreadySent, nil
	case repository.EmailClaimNotEligible:
		metrics.ConfirmationEmails.WithLabelValues(string(Failed)).Inc()
		return Failed, ErrNotEligible
	}

	enrollment, err := d.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		d.release(ctx, enrollmentID)
		metrics.ConfirmationEmails.WithLabelValues(string(Failed)).Inc()
		return Failed, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.SendTimeout)
	defer cancel()

	messageID, err := d.mailer.Send(sendCtx, ConfirmationMessage(enrollment))
	if err != nil {
		log.Errorf("[Notify] Confirmation email for enrollment %s failed: %v", enrollmentID, err)
		d.release(ctx, enrollmentID)
		metrics.ConfirmationEmails.WithLabelValues(string(Failed)).Inc()
		return Failed, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	if err := d.enrollments.MarkEmailSent(ctx, enrollmentID, messageID, d.now()); err != nil {
		log.Errorf("[Notify] Email %s for enrollment %s sent but not recorded: %v", messageID, enrollmentID, err)
	}
	metrics.ConfirmationEmails.WithLabelValues(string(Sent)).Inc()
	return Sent, nil
}

func (d *Dispatcher) release(ctx context.Context, enrollmentID string) {
	if err := d.enrollments.ReleaseEmailClaim(ctx, enrollmentID); err != nil {
		log.Errorf("[Notify] Failed to release email claim for enrollment %s: %v", enrollmentID, err)
	}
}

// ConfirmationMessage builds the confirmation email for a successful enrollment.
func ConfirmationMessage(e *models.Enrollment) mail.Message {
	title := "your session"
	var details []string
	if e.Session != nil {
		title = e.Session.Title
		details = append(details,
			fmt.Sprintf("<li>Date: %s</li>", e.Session.SessionDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST")),
			fmt.Sprintf("<li>Duration: %d minutes</li>", e.Session.DurationMinutes),
		)
		if e.Session.ZoomLink != "" {
			details = append(details, fmt.Sprintf(`<li>Join: <a href="%s">%s</a></li>`,
				html.EscapeString(e.Session.ZoomLink), html.EscapeString(e.Session.ZoomLink)))
		}
	}
	if e.AmountPaid > 0 {
		details = append(details, fmt.Sprintf("<li>Paid: %s</li>", money.Format(e.AmountPaid, e.Currency)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(e.FullName))
	fmt.Fprintf(&b, "<p>You are enrolled in <strong>%s</strong>.</p>", html.EscapeString(title))
	if len(details) > 0 {
		b.WriteString("<ul>")
		b.WriteString(strings.Join(details, ""))
		b.WriteString("</ul>")
	}
	fmt.Fprintf(&b, "<p>Reference: %s</p>", html.EscapeString(e.ID))

	return mail.Message{
		To:      e.Email,
		Subject: "Enrollment confirmed: " + title,
		HTML:    b.String(),
	}
}
