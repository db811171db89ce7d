package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/enrollment"
)

const maxPageSize = 100

type domainError struct {
	err     error
	status  int
	code    string
	message string
}

// domainErrors maps every service sentinel to its HTTP response. Order
// matters only for wrapped errors that match more than one entry.
var domainErrors = []domainError{
	{enrollment.ErrValidation, fiber.StatusBadRequest, "validation_failed", ""},
	{enrollment.ErrInvalidSignature, fiber.StatusBadRequest, "invalid_signature", "Payment verification failed"},
	{enrollment.ErrNotFound, fiber.StatusNotFound, "not_found", "Resource not found"},
	{enrollment.ErrSessionFull, fiber.StatusConflict, "session_full", "This session is full"},
	{enrollment.ErrAlreadyEnrolled, fiber.StatusConflict, "already_enrolled", "You are already enrolled in this session"},
	{enrollment.ErrSessionClosed, fiber.StatusConflict, "session_closed", "This session is not open for enrollment"},
	{enrollment.ErrPaymentRequired, fiber.StatusPaymentRequired, "payment_required", "This session requires payment"},
	{enrollment.ErrFreeSession, fiber.StatusBadRequest, "session_is_free", "This session is free, use free enrollment"},
	{enrollment.ErrPriceNotConfigured, fiber.StatusInternalServerError, "price_not_configured", "Session price is not configured"},
	{enrollment.ErrGatewayNotConfigured, fiber.StatusServiceUnavailable, "gateway_not_configured", "Payments are currently unavailable"},
	{enrollment.ErrGateway, fiber.StatusBadGateway, "gateway_error", "Payment provider did not respond, please try again"},
	{enrollment.ErrCapacityConflict, fiber.StatusConflict, "capacity_conflict", "Capacity is below the number of confirmed enrollments"},
	{enrollment.ErrInvalidCapacity, fiber.StatusBadRequest, "validation_failed", "Capacity must be at least 1"},
	{enrollment.ErrSessionHasEnrollments, fiber.StatusConflict, "session_has_enrollments", "Session has confirmed enrollments"},
	{enrollment.ErrInvalidTransition, fiber.StatusConflict, "invalid_transition", "Payment status does not allow this action"},
	{repository.ErrOrderAlreadyAttached, fiber.StatusConflict, "order_already_attached", "Enrollment already has an order"},
	{repository.ErrAlreadyExists, fiber.StatusConflict, "already_exists", "Record already exists"},
}

// writeDomainError is the single place where service errors become HTTP
// responses.
func writeDomainError(c *fiber.Ctx, err error) error {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			message := de.message
			if message == "" {
				message = err.Error()
			}
			return errorJSON(c, de.status, de.code, message)
		}
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return errorJSON(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Something went wrong, please try again")
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusBadRequest, "invalid_request", message)
}

// pagination reads offset/limit query parameters.
func pagination(c *fiber.Ctx) (offset, limit int) {
	offset, _ = strconv.Atoi(c.Query("offset", "0"))
	limit, _ = strconv.Atoi(c.Query("limit", "50"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}

// GetClientIP determines the client address considering proxies.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	ip := c.IP()
	// IPv4 mapped into IPv6 (::ffff:192.168.1.1)
	if strings.HasPrefix(ip, "::ffff:") && strings.Contains(ip, ".") {
		ip = strings.TrimPrefix(ip, "::ffff:")
	}
	return ip
}
