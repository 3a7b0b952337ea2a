// Package httpx renders the {success, ...} JSON envelope the quiz front end expects.
package httpx

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/middleware"
	"github.com/emandor/quiz_service/internal/telemetry"
)

// Messages overrides the default caller-facing text per error kind.
type Messages map[error]string

var defaults = []struct {
	kind   error
	status int
	msg    string
}{
	{apperr.ErrInvalidInput, fiber.StatusBadRequest, "Invalid data provided"},
	{apperr.ErrWeakPassword, fiber.StatusBadRequest, "Password must be at least 6 characters"},
	{apperr.ErrDuplicateUsername, fiber.StatusConflict, "Username already exists"},
	{apperr.ErrDuplicateEmail, fiber.StatusConflict, "Email already registered"},
	{apperr.ErrNotFound, fiber.StatusNotFound, "User not found"},
	{apperr.ErrInvalidCredentials, fiber.StatusUnauthorized, "Invalid username or password"},
	{apperr.ErrUnauthenticated, fiber.StatusUnauthorized, "User not logged in"},
}

// OK writes {success:true} merged with body.
func OK(c *fiber.Ctx, body fiber.Map) error {
	out := fiber.Map{"success": true}
	for k, v := range body {
		out[k] = v
	}
	return c.JSON(out)
}

// Fail writes {success:false, message}.
func Fail(c *fiber.Ctx, err error, msgs Messages) error {
	return fail(c, "message", err, msgs)
}

// FailError writes {success:false, error}; used by the catalog and results endpoints.
func FailError(c *fiber.Ctx, err error, msgs Messages) error {
	return fail(c, "error", err, msgs)
}

func fail(c *fiber.Ctx, field string, err error, msgs Messages) error {
	status, msg := Describe(err, msgs)
	if status >= fiber.StatusInternalServerError {
		log := telemetry.Module("http").With().Str("req_id", middleware.RequestIDFrom(c)).Logger()
		log.Error().Err(err).Str("path", c.Path()).Msg("request_failed")
	}
	return c.Status(status).JSON(fiber.Map{"success": false, field: msg})
}

// Describe maps err to a status code and a message that never carries store internals.
func Describe(err error, msgs Messages) (int, string) {
	for _, d := range defaults {
		if !errors.Is(err, d.kind) {
			continue
		}
		if m, ok := msgs[d.kind]; ok {
			return d.status, m
		}
		if d.kind == apperr.ErrInvalidInput {
			return d.status, err.Error()
		}
		return d.status, d.msg
	}
	if m, ok := msgs[apperr.ErrStore]; ok {
		return fiber.StatusInternalServerError, m
	}
	return fiber.StatusInternalServerError, "Database error occurred"
}
