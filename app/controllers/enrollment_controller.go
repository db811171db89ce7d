package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/enrollment"
)

// enrollRequest is shared by free enrollment and order creation. Any amount
// sent by the browser is not part of it; prices always come from the session.
type enrollRequest struct {
	SessionID string       `json:"session_id"`
	UserInfo  models.Payer `json:"user_info"`
}

type EnrollmentController struct {
	service *enrollment.Service
}

func NewEnrollmentController(service *enrollment.Service) *EnrollmentController {
	return &EnrollmentController{service: service}
}

func (ec *EnrollmentController) parse(c *fiber.Ctx) (*enrollRequest, error) {
	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	return &req, nil
}

// HandleFreeEnroll enrolls the payer into a free session.
func (ec *EnrollmentController) HandleFreeEnroll(c *fiber.Ctx) error {
	req, err := ec.parse(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.SessionID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "validation_failed", "session_id is required")
	}

	reservation, err := ec.service.ReserveFree(c.UserContext(), req.SessionID, req.UserInfo)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reservation)
}

// HandleCreateOrder reserves a pending enrollment and creates the provider order.
func (ec *EnrollmentController) HandleCreateOrder(c *fiber.Ctx) error {
	req, err := ec.parse(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.SessionID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "validation_failed", "session_id is required")
	}

	order, err := ec.service.CreateOrder(c.UserContext(), req.SessionID, req.UserInfo)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}
