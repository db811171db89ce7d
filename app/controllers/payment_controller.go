package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/internal/pkg/payment"
)

const (
	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"
)

type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// PaymentController exposes both payment confirmation entry points.
type PaymentController struct {
	reconciler *payment.Reconciler
}

func NewPaymentController(reconciler *payment.Reconciler) *PaymentController {
	return &PaymentController{reconciler: reconciler}
}

// HandleVerify confirms a payment from the browser checkout callback.
func (pc *PaymentController) HandleVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	confirmation, err := pc.reconciler.ConfirmFromClient(c.UserContext(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{
		"enrollment_id":    confirmation.Enrollment.ID,
		"status":           confirmation.Enrollment.PaymentStatus,
		"already_verified": confirmation.AlreadyConfirmed,
	})
}

// HandleWebhook processes a provider notification. Anything the provider
// should not retry is acknowledged with 200.
func (pc *PaymentController) HandleWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer after the handler returns
	body := append([]byte(nil), c.Body()...)

	result, err := pc.reconciler.HandleWebhook(c.UserContext(), payment.WebhookDelivery{
		Body:      body,
		Signature: c.Get(HeaderRazorpaySignature),
		EventID:   c.Get(HeaderRazorpayEventID),
	})
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			log.Warnf("[Webhook] Rejected delivery with invalid signature from %s", GetClientIP(c))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		log.Errorf("[Webhook] Processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "status": result.Outcome})
}
