package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/CourseSeat/app/controllers"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/middleware"
)

const defaultRateLimit = 60

// Dependencies carries the wired controllers and middleware inputs.
type Dependencies struct {
	Sessions          *controllers.SessionController
	Enrollments       *controllers.EnrollmentController
	Payments          *controllers.PaymentController
	AdminAuth         *controllers.AdminAuthController
	AdminSessions     *controllers.AdminSessionController
	AdminEnrollments  *controllers.AdminEnrollmentController
	Activity          *controllers.ActivityLogger
	Tokens            middleware.TokenParser
	Health            HealthCheck
	LimiterStorage    fiber.Storage
	RateLimit         int
	RateLimitDuration time.Duration
}

type ApiRouter struct {
	deps *Dependencies
}

func NewApiRouter(deps *Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	d := h.deps

	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// public enrollment surface; the webhook is exempt from the limiter so
	// provider retries are never throttled
	limit := h.publicLimiter()
	api.Get("/sessions/available", limit, d.Sessions.HandleAvailable)
	api.Get("/sessions/:id", limit, d.Sessions.HandleGet)
	api.Post("/enroll/free", limit, d.Enrollments.HandleFreeEnroll)
	api.Post("/payments/create-order", limit, d.Enrollments.HandleCreateOrder)
	api.Post("/payments/verify", limit, d.Payments.HandleVerify)
	api.Post("/payments/webhook", d.Payments.HandleWebhook)

	admin := api.Group("/admin")
	admin.Post("/auth/login", d.AdminAuth.HandleLogin)

	requireAdmin := middleware.RequireAdmin(d.Tokens)
	admin.Post("/auth/logout", requireAdmin, d.AdminAuth.HandleLogout)
	admin.Get("/auth/me", requireAdmin, d.AdminAuth.HandleMe)
	admin.Post("/auth/change-password", requireAdmin, d.AdminAuth.HandleChangePassword)

	sessions := admin.Group("/sessions", requireAdmin)
	sessions.Get("/", d.AdminSessions.HandleList)
	sessions.Post("/", middleware.RequireMutation, d.AdminSessions.HandleCreate)
	sessions.Get("/:id", d.AdminSessions.HandleGet)
	sessions.Put("/:id", middleware.RequireMutation, d.AdminSessions.HandleUpdate)
	sessions.Delete("/:id", middleware.RequireMutation, d.AdminSessions.HandleDelete)
	sessions.Patch("/:id/capacity", middleware.RequireMutation, d.AdminSessions.HandleUpdateCapacity)

	enrollments := admin.Group("/enrollments", requireAdmin)
	enrollments.Get("/", d.AdminEnrollments.HandleList)
	enrollments.Get("/:id", d.AdminEnrollments.HandleGet)
	enrollments.Post("/:id/refund", middleware.RequireMutation, d.AdminEnrollments.HandleRefund)
	enrollments.Post("/:id/resend-confirmation", middleware.RequireMutation, d.AdminEnrollments.HandleResendConfirmation)

	admin.Get("/activity", requireAdmin, d.Activity.HandleRecent)
}

func (h ApiRouter) publicLimiter() fiber.Handler {
	maxRequests := h.deps.RateLimit
	if maxRequests <= 0 {
		maxRequests = defaultRateLimit
	}
	expiration := h.deps.RateLimitDuration
	if expiration <= 0 {
		expiration = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: expiration,
		Storage:    h.deps.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "api:" + controllers.GetClientIP(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "too many requests",
			})
		},
	})
}
