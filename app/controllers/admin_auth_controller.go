package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/metrics"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/middleware"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/ratelimit"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/security"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AdminAuthController handles operator login, logout and password rotation.
type AdminAuthController struct {
	admins       repository.AdminUserRepository
	tokens       *security.TokenManager
	guard        *ratelimit.Guard
	activity     *ActivityLogger
	secureCookie bool
}

func NewAdminAuthController(admins repository.AdminUserRepository, tokens *security.TokenManager, guard *ratelimit.Guard, activity *ActivityLogger, secureCookie bool) *AdminAuthController {
	return &AdminAuthController{
		admins:       admins,
		tokens:       tokens,
		guard:        guard,
		activity:     activity,
		secureCookie: secureCookie,
	}
}

// HandleLogin applies the per client and per account limits before
// checking credentials.
func (ac *AdminAuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return errorJSON(c, fiber.StatusBadRequest, "validation_failed", "email and password are required")
	}

	ctx := c.UserContext()
	ip := GetClientIP(c)

	decision, err := ac.guard.Allow(ctx, ip, email)
	if err != nil {
		log.Errorf("[Auth] Rate limit store unavailable: %v", err)
		return errorJSON(c, fiber.StatusServiceUnavailable, "auth_unavailable", "Login is temporarily unavailable")
	}
	if !decision.Allowed() {
		return ac.rejectLimited(c, decision)
	}

	admin, err := ac.admins.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		security.DummyPasswordCheck(req.Password)
		return ac.failLogin(c, email)
	case err != nil:
		return writeDomainError(c, err)
	}
	if !admin.CheckPassword(req.Password) || !admin.IsActive {
		return ac.failLogin(c, email)
	}

	if err := ac.guard.Reset(ctx, ip, email); err != nil {
		log.Warnf("[Auth] Failed to reset login counters for %s: %v", email, err)
	}
	now := time.Now()
	if err := ac.admins.TouchLastLogin(ctx, admin.ID, now); err != nil {
		log.Warnf("[Auth] Failed to record last login for admin %d: %v", admin.ID, err)
	}
	admin.LastLoginAt = &now

	token, claims, err := ac.tokens.Issue(admin)
	if err != nil {
		return writeDomainError(c, err)
	}
	ac.setCookie(c, token, claims.ExpiresAt.Time)
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	ac.activity.Log(c, admin.ID, models.ActivityLogin, "admin_user", strconv.FormatUint(uint64(admin.ID), 10), nil)

	return c.JSON(fiber.Map{
		"token":                token,
		"must_change_password": admin.MustChangePassword,
		"admin":                admin,
	})
}

func (ac *AdminAuthController) failLogin(c *fiber.Ctx, email string) error {
	decision, err := ac.guard.Fail(c.UserContext(), email)
	if err != nil {
		log.Errorf("[Auth] Failed to record login failure for %s: %v", email, err)
	}
	if err == nil && decision.Status == ratelimit.Locked {
		log.Warnf("[Auth] Account %s locked after repeated failures", email)
		return ac.rejectLimited(c, decision)
	}
	metrics.LoginAttempts.WithLabelValues("invalid").Inc()
	return errorJSON(c, fiber.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
}

func (ac *AdminAuthController) rejectLimited(c *fiber.Ctx, decision ratelimit.Decision) error {
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(decision.RetryAfterSeconds()))
	if decision.Status == ratelimit.Locked {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		return errorJSON(c, fiber.StatusLocked, "account_locked", "Too many failed logins, the account is temporarily locked")
	}
	metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
	return errorJSON(c, fiber.StatusTooManyRequests, "too_many_attempts", "Too many login attempts, please try again later")
}

// HandleLogout revokes the presented token for the rest of its lifetime.
func (ac *AdminAuthController) HandleLogout(c *fiber.Ctx) error {
	claims := middleware.AdminClaims(c)
	if claims != nil {
		if err := ac.tokens.Revoke(c.UserContext(), claims); err != nil {
			return writeDomainError(c, err)
		}
		ac.activity.LogCurrent(c, models.ActivityLogout, "admin_user", claims.Subject, nil)
	}
	ac.clearCookie(c)
	return c.JSON(fiber.Map{"ok": true})
}

func (ac *AdminAuthController) HandleMe(c *fiber.Ctx) error {
	admin, err := ac.currentAdmin(c)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{"admin": admin})
}

// HandleChangePassword rotates the password and reissues the token with the
// forced-change flag cleared.
func (ac *AdminAuthController) HandleChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	admin, err := ac.currentAdmin(c)
	if err != nil {
		return writeDomainError(c, err)
	}
	if !admin.CheckPassword(req.CurrentPassword) {
		if _, err := ac.guard.Fail(c.UserContext(), admin.Email); err != nil {
			log.Errorf("[Auth] Failed to record password failure for %s: %v", admin.Email, err)
		}
		return errorJSON(c, fiber.StatusUnauthorized, "invalid_credentials", "Current password is incorrect")
	}
	if err := security.ValidatePassword(req.NewPassword); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "weak_password", err.Error())
	}
	if req.NewPassword == req.CurrentPassword {
		return errorJSON(c, fiber.StatusBadRequest, "password_reuse", security.ErrPasswordReuse.Error())
	}

	if err := admin.SetPassword(req.NewPassword); err != nil {
		return writeDomainError(c, err)
	}
	if err := ac.admins.UpdatePassword(c.UserContext(), admin.ID, admin.PasswordHash); err != nil {
		return writeDomainError(c, err)
	}
	admin.MustChangePassword = false

	if err := ac.tokens.Revoke(c.UserContext(), middleware.AdminClaims(c)); err != nil {
		log.Warnf("[Auth] Failed to revoke previous token of admin %d: %v", admin.ID, err)
	}
	token, claims, err := ac.tokens.Issue(admin)
	if err != nil {
		return writeDomainError(c, err)
	}
	ac.setCookie(c, token, claims.ExpiresAt.Time)
	ac.activity.Log(c, admin.ID, models.ActivityPasswordChanged, "admin_user", strconv.FormatUint(uint64(admin.ID), 10), nil)

	return c.JSON(fiber.Map{
		"token":                token,
		"must_change_password": false,
	})
}

func (ac *AdminAuthController) currentAdmin(c *fiber.Ctx) (*models.AdminUser, error) {
	claims := middleware.AdminClaims(c)
	if claims == nil {
		return nil, repository.ErrNotFound
	}
	id, err := claims.AdminID()
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return ac.admins.GetByID(c.UserContext(), id)
}

func (ac *AdminAuthController) setCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AdminTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   ac.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (ac *AdminAuthController) clearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AdminTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   ac.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
