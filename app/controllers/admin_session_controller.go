package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/money"
)

// sessionInput is the operator payload for creating and editing sessions.
// Price is given in the smallest currency unit, or as a decimal string in
// PriceMajor ("499.00"); PriceMajor wins when both are set.
type sessionInput struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	SessionDate     *time.Time `json:"session_date"`
	DurationMinutes *int       `json:"duration_minutes"`
	ZoomLink        *string    `json:"zoom_link"`
	MaxCapacity     *int       `json:"max_capacity"`
	Price           *int64     `json:"price"`
	PriceMajor      *string    `json:"price_major"`
	Currency        *string    `json:"currency"`
	IsFree          *bool      `json:"is_free"`
	Status          *string    `json:"status"`
}

func (in *sessionInput) price() (*int64, error) {
	if in.PriceMajor == nil || strings.TrimSpace(*in.PriceMajor) == "" {
		return in.Price, nil
	}
	minor, err := money.ParseMajor(*in.PriceMajor)
	if err != nil {
		return nil, err
	}
	return &minor, nil
}

func (in *sessionInput) update() (repository.SessionUpdate, error) {
	price, err := in.price()
	if err != nil {
		return repository.SessionUpdate{}, err
	}
	update := repository.SessionUpdate{
		Title:           in.Title,
		Description:     in.Description,
		SessionDate:     in.SessionDate,
		DurationMinutes: in.DurationMinutes,
		ZoomLink:        in.ZoomLink,
		Price:           price,
		IsFree:          in.IsFree,
		Status:          in.Status,
	}
	if in.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*in.Currency))
		update.Currency = &currency
	}
	return update, nil
}

// AdminSessionView adds the live count of confirmed enrollments.
type AdminSessionView struct {
	*models.Session
	AvailableSeats        int   `json:"available_seats"`
	SuccessfulEnrollments int64 `json:"successful_enrollments"`
}

// AdminSessionController manages sessions and their capacity.
type AdminSessionController struct {
	sessions repository.SessionRepository
	activity *ActivityLogger
}

func NewAdminSessionController(sessions repository.SessionRepository, activity *ActivityLogger) *AdminSessionController {
	return &AdminSessionController{sessions: sessions, activity: activity}
}

func (sc *AdminSessionController) HandleList(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	sessions, err := sc.sessions.List(c.UserContext(), repository.SessionFilter{
		Status: c.Query("status"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions, "offset": offset, "limit": limit})
}

func (sc *AdminSessionController) HandleGet(c *fiber.Ctx) error {
	session, err := sc.sessions.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeDomainError(c, err)
	}
	successes, err := sc.sessions.CountSuccessful(c.UserContext(), session.ID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(AdminSessionView{Session: session, AvailableSeats: session.AvailableSeats(), SuccessfulEnrollments: successes})
}

func (sc *AdminSessionController) HandleCreate(c *fiber.Ctx) error {
	var in sessionInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if in.MaxCapacity == nil {
		return errorJSON(c, fiber.StatusBadRequest, "validation_failed", "max_capacity is required")
	}
	update, err := in.update()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	session := &models.Session{MaxCapacity: *in.MaxCapacity, DurationMinutes: 60}
	update.Apply(session)
	if session.Currency == "" {
		session.Currency = models.DefaultCurrency
	}
	if session.Status == "" {
		session.Status = models.SessionStatusUpcoming
	}
	session.NormalizePricing()
	if err := session.Validate(); err != nil {
		return writeDomainError(c, err)
	}

	if err := sc.sessions.Create(c.UserContext(), session); err != nil {
		return writeDomainError(c, err)
	}
	sc.activity.LogCurrent(c, models.ActivitySessionCreated, "session", session.ID, fiber.Map{
		"title":        session.Title,
		"max_capacity": session.MaxCapacity,
		"price":        session.Price,
	})
	return c.Status(fiber.StatusCreated).JSON(session)
}

// HandleUpdate edits a session. A capacity change is applied first so that
// a conflict leaves the session untouched.
func (sc *AdminSessionController) HandleUpdate(c *fiber.Ctx) error {
	var in sessionInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	update, err := in.update()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	id := c.Params("id")
	ctx := c.UserContext()
	if in.MaxCapacity != nil {
		if _, err := sc.sessions.UpdateCapacity(ctx, id, *in.MaxCapacity); err != nil {
			return writeDomainError(c, err)
		}
	}
	session, err := sc.sessions.Update(ctx, id, update)
	if err != nil {
		return writeDomainError(c, err)
	}
	sc.activity.LogCurrent(c, models.ActivitySessionUpdated, "session", session.ID, fiber.Map{
		"max_capacity": session.MaxCapacity,
		"price":        session.Price,
		"is_free":      session.IsFree,
		"status":       session.Status,
	})
	return c.JSON(session)
}

func (sc *AdminSessionController) HandleUpdateCapacity(c *fiber.Ctx) error {
	var in struct {
		MaxCapacity *int `json:"max_capacity"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if in.MaxCapacity == nil {
		return errorJSON(c, fiber.StatusBadRequest, "validation_failed", "max_capacity is required")
	}

	session, err := sc.sessions.UpdateCapacity(c.UserContext(), c.Params("id"), *in.MaxCapacity)
	if err != nil {
		return writeDomainError(c, err)
	}
	sc.activity.LogCurrent(c, models.ActivityCapacityChanged, "session", session.ID, fiber.Map{"max_capacity": session.MaxCapacity})
	return c.JSON(session)
}

func (sc *AdminSessionController) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := sc.sessions.Delete(c.UserContext(), id); err != nil {
		return writeDomainError(c, err)
	}
	sc.activity.LogCurrent(c, models.ActivitySessionDeleted, "session", id, nil)
	return c.SendStatus(fiber.StatusNoContent)
}
