package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/internal/pkg/security"
)

const (
	AdminTokenCookie = "admin_token"
	localsAdmin      = "admin_claims"
)

// TokenParser validates an admin token.
type TokenParser interface {
	Parse(ctx context.Context, raw string) (*security.AdminClaims, error)
}

// RequireAdmin ensures a valid admin token from the cookie or the
// Authorization header and stores its claims in Locals.
func RequireAdmin(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := TokenFromRequest(c)
		if raw == "" {
			return unauthorized(c, "login required")
		}
		claims, err := tokens.Parse(c.UserContext(), raw)
		if err != nil {
			if !errors.Is(err, security.ErrInvalidToken) && !errors.Is(err, security.ErrRevokedToken) {
				log.Errorf("[Auth] Token check failed: %v", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error":   "auth_unavailable",
					"message": "authentication is temporarily unavailable",
				})
			}
			return unauthorized(c, "invalid or expired token")
		}
		c.Locals(localsAdmin, claims)
		return c.Next()
	}
}

// RequireMutation allows only admins who may change data and have already
// replaced their initial password. Must run after RequireAdmin.
func RequireMutation(c *fiber.Ctx) error {
	claims := AdminClaims(c)
	if claims == nil {
		return unauthorized(c, "login required")
	}
	if claims.MustChangePassword {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "password_change_required",
			"message": "change your password before making changes",
		})
	}
	if !claims.CanMutate() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "your role is read-only",
		})
	}
	return c.Next()
}

// AdminClaims returns the claims stored by RequireAdmin, or nil.
func AdminClaims(c *fiber.Ctx) *security.AdminClaims {
	claims, _ := c.Locals(localsAdmin).(*security.AdminClaims)
	return claims
}

// TokenFromRequest prefers the Authorization bearer token over the cookie.
func TokenFromRequest(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			return strings.TrimSpace(auth[7:])
		}
	}
	return strings.TrimSpace(c.Cookies(AdminTokenCookie))
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}
