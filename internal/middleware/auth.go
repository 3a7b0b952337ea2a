package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/quiz_service/internal/model"
)

const SessionKey = "session"

// SessionResolver maps a cookie value to a live session, or nil for a guest.
type SessionResolver interface {
	Resolve(ctx context.Context, sid string) *model.Session
}

// CookieRefresher re-issues the session cookie for a resolved session.
type CookieRefresher func(c *fiber.Ctx, s *model.Session)

// LoadSession resolves the session cookie once per request. Missing, expired
// or unreadable sessions leave the request anonymous. When refresh is set it
// runs for every resolved session, keeping the cookie lifetime in step with
// the sliding server TTL.
func LoadSession(cookieName string, r SessionResolver, refresh CookieRefresher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sid := c.Cookies(cookieName); sid != "" {
			if s := r.Resolve(c.UserContext(), sid); s != nil {
				c.Locals(SessionKey, s)
				if refresh != nil {
					refresh(c, s)
				}
			}
		}
		return c.Next()
	}
}

// RequireSession rejects anonymous requests. It must run after LoadSession.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentSession(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not logged in",
			})
		}
		return c.Next()
	}
}

// CurrentSession returns the session resolved for this request, nil for guests.
func CurrentSession(c *fiber.Ctx) *model.Session {
	s, _ := c.Locals(SessionKey).(*model.Session)
	return s
}
