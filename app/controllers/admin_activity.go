package controllers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/middleware"
)

// ActivityLogger writes the operator audit trail. Write failures are logged
// and never surface to the request.
type ActivityLogger struct {
	repo repository.ActivityRepository
}

func NewActivityLogger(repo repository.ActivityRepository) *ActivityLogger {
	return &ActivityLogger{repo: repo}
}

func (l *ActivityLogger) Log(c *fiber.Ctx, adminID uint, action, entityType, entityID string, details fiber.Map) {
	if l == nil || l.repo == nil {
		return
	}
	activity := &models.AdminActivity{
		AdminID:    adminID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  GetClientIP(c),
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			activity.Details = string(raw)
		}
	}
	if err := l.repo.Log(c.UserContext(), activity); err != nil {
		log.Warnf("[Activity] Failed to record %s by admin %d: %v", action, adminID, err)
	}
}

// LogCurrent records an action of the admin authenticated on this request.
func (l *ActivityLogger) LogCurrent(c *fiber.Ctx, action, entityType, entityID string, details fiber.Map) {
	claims := middleware.AdminClaims(c)
	if claims == nil {
		return
	}
	adminID, err := claims.AdminID()
	if err != nil {
		return
	}
	l.Log(c, adminID, action, entityType, entityID, details)
}

// HandleRecent lists the latest audit entries.
func (l *ActivityLogger) HandleRecent(c *fiber.Ctx) error {
	_, limit := pagination(c)
	activities, err := l.repo.ListRecent(c.UserContext(), limit)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{"activities": activities})
}
