package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/metrics"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/notify"
)

// WebhookOutcome is how a verified delivery was handled. Every outcome is
// acknowledged to the provider.
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookRejected  WebhookOutcome = "rejected"
)

const (
	sourceClient  = "client"
	sourceWebhook = "webhook"
)

// Verifier checks checkout and webhook signatures.
type Verifier interface {
	VerifySignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool
}

// Notifier sends the confirmation email at most once per enrollment.
type Notifier interface {
	SendOnce(ctx context.Context, enrollmentID string) (notify.Result, error)
}

// WebhookDelivery is one raw provider request.
type WebhookDelivery struct {
	Body      []byte
	Signature string
	EventID   string
}

type WebhookResult struct {
	Outcome      WebhookOutcome
	Event        string
	EnrollmentID string
	Reason       string
}

// Confirmation is the result of a browser-side payment confirmation.
type Confirmation struct {
	Enrollment       *models.Enrollment
	AlreadyConfirmed bool
}

// Reconciler funnels client confirmations and provider webhooks into the
// same compare-and-set on the enrollment row.
type Reconciler struct {
	enrollments repository.EnrollmentRepository
	events      repository.WebhookEventRepository
	verifier    Verifier
	notifier    Notifier
	now         func() time.Time
}

func NewReconciler(enrollments repository.EnrollmentRepository, events repository.WebhookEventRepository, verifier Verifier, notifier Notifier) *Reconciler {
	return &Reconciler{
		enrollments: enrollments,
		events:      events,
		verifier:    verifier,
		notifier:    notifier,
		now:         time.Now,
	}
}

// ConfirmFromClient verifies the checkout signature and confirms the order.
// A signature mismatch never touches storage.
func (r *Reconciler) ConfirmFromClient(ctx context.Context, orderID, paymentID, signature string) (*Confirmation, error) {
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	signature = strings.TrimSpace(signature)

	if orderID == "" || paymentID == "" || !r.verifier.VerifySignature(orderID, paymentID, signature) {
		metrics.PaymentConfirmations.WithLabelValues(sourceClient, "invalid_signature").Inc()
		return nil, ErrInvalidSignature
	}

	enrollment, outcome, err := r.enrollments.ConfirmPayment(ctx, repository.PaymentConfirmation{
		OrderID:    orderID,
		PaymentID:  paymentID,
		Signature:  signature,
		VerifiedAt: r.now(),
	})
	if err != nil {
		metrics.PaymentConfirmations.WithLabelValues(sourceClient, outcomeLabel(err)).Inc()
		r.logRejection(sourceClient, orderID, enrollment, err)
		return nil, err
	}

	result := &Confirmation{Enrollment: enrollment}
	switch outcome {
	case repository.ConfirmTransitioned:
		metrics.PaymentConfirmations.WithLabelValues(sourceClient, "confirmed").Inc()
		log.Infof("[Reconciler] Enrollment %s confirmed by client for order %s", enrollment.ID, orderID)
		r.dispatch(ctx, enrollment.ID)
	case repository.ConfirmAlreadySuccess:
		metrics.PaymentConfirmations.WithLabelValues(sourceClient, "already_confirmed").Inc()
		result.AlreadyConfirmed = true
	}
	return result, nil
}

// HandleWebhook verifies, records and applies one provider delivery. The
// returned error is either ErrInvalidSignature or a storage failure the
// provider should retry.
func (r *Reconciler) HandleWebhook(ctx context.Context, delivery WebhookDelivery) (*WebhookResult, error) {
	if len(delivery.Body) == 0 || !r.verifier.VerifyWebhookSignature(delivery.Body, delivery.Signature) {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		return nil, ErrInvalidSignature
	}

	event, err := ParseWebhookEvent(delivery.Body)
	if err != nil {
		log.Warnf("[Reconciler] Ignoring unparseable webhook: %v", err)
		metrics.WebhookEvents.WithLabelValues("unknown", string(WebhookIgnored)).Inc()
		return &WebhookResult{Outcome: WebhookIgnored, Reason: "malformed payload"}, nil
	}

	record := &models.PaymentWebhookEvent{
		Provider:        models.PaymentProviderRazorpay,
		ProviderEventID: DeliveryID(delivery.EventID, delivery.Body),
		EventType:       event.Event,
		OrderID:         event.OrderID(),
		PaymentID:       event.PaymentID(),
		PayloadJSON:     string(delivery.Body),
	}
	created, stored, err := r.events.CreateIfNotExists(ctx, record)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(event.Event, "error").Inc()
		return nil, err
	}
	if !created && stored.IsSettled() {
		metrics.WebhookEvents.WithLabelValues(event.Event, string(WebhookDuplicate)).Inc()
		return &WebhookResult{Outcome: WebhookDuplicate, Event: event.Event}, nil
	}

	result, err := r.applyEvent(ctx, event)
	processingError := ""
	if err != nil {
		processingError = err.Error()
	}
	if markErr := r.events.MarkProcessed(ctx, stored.ID, processingError); markErr != nil {
		log.Errorf("[Reconciler] Failed to mark webhook event %d processed: %v", stored.ID, markErr)
		if err == nil {
			err = markErr
		}
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(event.Event, "error").Inc()
		return nil, err
	}

	metrics.WebhookEvents.WithLabelValues(event.Event, string(result.Outcome)).Inc()
	return result, nil
}

func (r *Reconciler) applyEvent(ctx context.Context, event *WebhookEvent) (*WebhookResult, error) {
	result := &WebhookResult{Event: event.Event}
	orderID := event.OrderID()

	switch {
	case IsConfirming(event.Event):
		if orderID == "" {
			result.Outcome, result.Reason = WebhookIgnored, "order id missing"
			return result, nil
		}
		enrollment, outcome, err := r.enrollments.ConfirmPayment(ctx, repository.PaymentConfirmation{
			OrderID:    orderID,
			PaymentID:  event.PaymentID(),
			VerifiedAt: r.now(),
		})
		if enrollment != nil {
			result.EnrollmentID = enrollment.ID
		}
		if err != nil {
			metrics.PaymentConfirmations.WithLabelValues(sourceWebhook, outcomeLabel(err)).Inc()
			if !isDomainRejection(err) {
				return nil, err
			}
			r.logRejection(sourceWebhook, orderID, enrollment, err)
			result.Outcome, result.Reason = WebhookRejected, err.Error()
			return result, nil
		}
		result.Outcome = WebhookProcessed
		if outcome == repository.ConfirmTransitioned {
			metrics.PaymentConfirmations.WithLabelValues(sourceWebhook, "confirmed").Inc()
			log.Infof("[Reconciler] Enrollment %s confirmed by %s for order %s", enrollment.ID, event.Event, orderID)
			r.dispatch(ctx, enrollment.ID)
		} else {
			metrics.PaymentConfirmations.WithLabelValues(sourceWebhook, "already_confirmed").Inc()
		}
		return result, nil

	case event.Event == EventPaymentFailed:
		if orderID == "" {
			result.Outcome, result.Reason = WebhookIgnored, "order id missing"
			return result, nil
		}
		enrollment, changed, err := r.enrollments.FailPayment(ctx, orderID, event.PaymentID(), event.FailureReason())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Warnf("[Reconciler] payment.failed for unknown order %s", orderID)
				result.Outcome, result.Reason = WebhookRejected, err.Error()
				return result, nil
			}
			return nil, err
		}
		result.EnrollmentID = enrollment.ID
		result.Outcome = WebhookProcessed
		if changed {
			log.Infof("[Reconciler] Enrollment %s failed: %s", enrollment.ID, enrollment.FailureReason)
		}
		return result, nil
	}

	log.Infof("[Reconciler] Ignoring webhook event %s", event.Event)
	result.Outcome = WebhookIgnored
	return result, nil
}

// dispatch sends the confirmation email. Delivery problems are logged by the
// notifier and never fail the confirmation.
func (r *Reconciler) dispatch(ctx context.Context, enrollmentID string) {
	if r.notifier == nil {
		return
	}
	if _, err := r.notifier.SendOnce(ctx, enrollmentID); err != nil {
		log.Warnf("[Reconciler] Confirmation email for enrollment %s not sent: %v", enrollmentID, err)
	}
}

func (r *Reconciler) logRejection(source, orderID string, enrollment *models.Enrollment, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionFull):
		log.Errorf("[Reconciler] REFUND NEEDED: %s payment for order %s arrived after the session filled up", source, orderID)
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		log.Errorf("[Reconciler] REFUND NEEDED: %s payment for order %s duplicates an existing enrollment", source, orderID)
	case errors.Is(err, repository.ErrInvalidTransition) && enrollment != nil && enrollment.PaymentStatus == models.PaymentStatusFailed:
		log.Errorf("[Reconciler] REFUND NEEDED: %s payment for order %s arrived after enrollment %s failed (%s)",
			source, orderID, enrollment.ID, enrollment.FailureReason)
	case isDomainRejection(err):
		log.Warnf("[Reconciler] %s confirmation for order %s rejected: %v", source, orderID, err)
	}
}

// isDomainRejection reports errors that will not change on redelivery.
func isDomainRejection(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrInvalidTransition) ||
		errors.Is(err, repository.ErrSessionFull) ||
		errors.Is(err, repository.ErrAlreadyEnrolled)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, repository.ErrSessionFull):
		return "session_full"
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		return "duplicate_success"
	}
	return "error"
}
