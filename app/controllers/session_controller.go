package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/enrollment"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/money"
)

// SessionView is the public representation of a session.
type SessionView struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	SessionDate        time.Time `json:"session_date"`
	DurationMinutes    int       `json:"duration_minutes"`
	Price              int64     `json:"price"`
	PriceDisplay       string    `json:"price_display"`
	Currency           string    `json:"currency"`
	IsFree             bool      `json:"is_free"`
	Status             string    `json:"status"`
	MaxCapacity        int       `json:"max_capacity"`
	CurrentEnrollments int       `json:"current_enrollments"`
	AvailableSeats     int       `json:"available_seats"`
	IsFull             bool      `json:"is_full"`
}

func NewSessionView(s *models.Session) SessionView {
	return SessionView{
		ID:                 s.ID,
		Title:              s.Title,
		Description:        s.Description,
		SessionDate:        s.SessionDate.UTC(),
		DurationMinutes:    s.DurationMinutes,
		Price:              s.Price,
		PriceDisplay:       money.Format(s.Price, s.Currency),
		Currency:           s.Currency,
		IsFree:             s.IsFree,
		Status:             s.Status,
		MaxCapacity:        s.MaxCapacity,
		CurrentEnrollments: s.CurrentEnrollments,
		AvailableSeats:     s.AvailableSeats(),
		IsFull:             s.IsFull(),
	}
}

// SessionController serves the public session catalogue.
type SessionController struct {
	service *enrollment.Service
}

func NewSessionController(service *enrollment.Service) *SessionController {
	return &SessionController{service: service}
}

// HandleAvailable lists upcoming sessions with free seats.
func (sc *SessionController) HandleAvailable(c *fiber.Ctx) error {
	sessions, err := sc.service.AvailableSessions(c.UserContext())
	if err != nil {
		return writeDomainError(c, err)
	}
	views := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, NewSessionView(&sessions[i]))
	}
	return c.JSON(fiber.Map{"sessions": views})
}

func (sc *SessionController) HandleGet(c *fiber.Ctx) error {
	session, err := sc.service.GetSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(NewSessionView(session))
}
