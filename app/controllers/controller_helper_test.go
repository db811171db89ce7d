package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/enrollment"
)

func errorResponse(t *testing.T, err error) (int, map[string]string) {
	t.Helper()

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return writeDomainError(c, err)
	})
	resp, testErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, testErr)
	defer resp.Body.Close()

	body := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestWriteDomainError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{enrollment.ErrSessionFull, fiber.StatusConflict, "session_full"},
		{enrollment.ErrAlreadyEnrolled, fiber.StatusConflict, "already_enrolled"},
		{enrollment.ErrSessionClosed, fiber.StatusConflict, "session_closed"},
		{enrollment.ErrPaymentRequired, fiber.StatusPaymentRequired, "payment_required"},
		{enrollment.ErrFreeSession, fiber.StatusBadRequest, "session_is_free"},
		{enrollment.ErrNotFound, fiber.StatusNotFound, "not_found"},
		{enrollment.ErrInvalidSignature, fiber.StatusBadRequest, "invalid_signature"},
		{enrollment.ErrGatewayNotConfigured, fiber.StatusServiceUnavailable, "gateway_not_configured"},
		{fmt.Errorf("%w: timeout", enrollment.ErrGateway), fiber.StatusBadGateway, "gateway_error"},
		{enrollment.ErrPriceNotConfigured, fiber.StatusInternalServerError, "price_not_configured"},
		{enrollment.ErrCapacityConflict, fiber.StatusConflict, "capacity_conflict"},
		{enrollment.ErrSessionHasEnrollments, fiber.StatusConflict, "session_has_enrollments"},
		{errors.New("boom"), fiber.StatusInternalServerError, "internal_server_error"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			status, body := errorResponse(t, tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestWriteDomainError_ValidationMessage(t *testing.T) {
	status, body := errorResponse(t, fmt.Errorf("%w: email is invalid", enrollment.ErrValidation))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Contains(t, body["message"], "email is invalid")

	session := &models.Session{Title: "x", MaxCapacity: 0, Currency: "INR", Status: "upcoming"}
	status, body = errorResponse(t, session.Validate())
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", body["error"])
}

func TestGetClientIP(t *testing.T) {
	var got string
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		got = GetClientIP(c)
		return c.SendStatus(fiber.StatusOK)
	})

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"cloudflare", map[string]string{"CF-Connecting-IP": "198.51.100.7", "X-Forwarded-For": "203.0.113.1"}, "198.51.100.7"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "192.0.2.9"}, "192.0.2.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			_, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPagination(t *testing.T) {
	var offset, limit int
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		offset, limit = pagination(c)
		return c.SendStatus(fiber.StatusOK)
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/?offset=-5&limit=1000", nil))
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
	assert.Equal(t, maxPageSize, limit)

	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/?offset=20&limit=10", nil))
	require.NoError(t, err)
	assert.Equal(t, 20, offset)
	assert.Equal(t, 10, limit)
}
