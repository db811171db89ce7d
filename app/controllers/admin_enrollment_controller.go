package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/notify"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/payment"
)

// AdminEnrollmentController lets operators inspect enrollments, record
// refunds and resend confirmations.
type AdminEnrollmentController struct {
	enrollments repository.EnrollmentRepository
	notifier    payment.Notifier
	activity    *ActivityLogger
}

func NewAdminEnrollmentController(enrollments repository.EnrollmentRepository, notifier payment.Notifier, activity *ActivityLogger) *AdminEnrollmentController {
	return &AdminEnrollmentController{
		enrollments: enrollments,
		notifier:    notifier,
		activity:    activity,
	}
}

func (ec *AdminEnrollmentController) HandleList(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	enrollments, err := ec.enrollments.List(c.UserContext(), repository.EnrollmentFilter{
		SessionID:     c.Query("session_id"),
		PaymentStatus: c.Query("status"),
		Email:         c.Query("email"),
		Offset:        offset,
		Limit:         limit,
	})
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{"enrollments": enrollments, "offset": offset, "limit": limit})
}

func (ec *AdminEnrollmentController) HandleGet(c *fiber.Ctx) error {
	enrollment, err := ec.enrollments.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(enrollment)
}

// HandleRefund records a refund issued at the provider and frees the seat.
func (ec *AdminEnrollmentController) HandleRefund(c *fiber.Ctx) error {
	enrollment, err := ec.enrollments.Refund(c.UserContext(), c.Params("id"), time.Now())
	if err != nil {
		return writeDomainError(c, err)
	}
	log.Infof("[Admin] Enrollment %s refunded, seat released in session %s", enrollment.ID, enrollment.SessionID)
	ec.activity.LogCurrent(c, models.ActivityRefunded, "enrollment", enrollment.ID, fiber.Map{
		"session_id":  enrollment.SessionID,
		"amount_paid": enrollment.AmountPaid,
	})
	return c.JSON(enrollment)
}

// HandleResendConfirmation retries the confirmation email. It is a no-op
// when the email was already delivered.
func (ec *AdminEnrollmentController) HandleResendConfirmation(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := ec.enrollments.GetByID(c.UserContext(), id); err != nil {
		return writeDomainError(c, err)
	}

	result, err := ec.notifier.SendOnce(c.UserContext(), id)
	ec.activity.LogCurrent(c, models.ActivityEmailResent, "enrollment", id, fiber.Map{"result": result})
	if errors.Is(err, notify.ErrNotEligible) {
		return errorJSON(c, fiber.StatusConflict, "not_eligible", "Only confirmed enrollments receive a confirmation email")
	}
	if err != nil {
		log.Warnf("[Admin] Resend for enrollment %s: %v", id, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "email_not_sent",
			"message": err.Error(),
			"result":  result,
		})
	}
	return c.JSON(fiber.Map{"result": result})
}
