package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/config"
	"github.com/emandor/quiz_service/internal/httpx"
	"github.com/emandor/quiz_service/internal/middleware"
	"github.com/emandor/quiz_service/internal/model"
	"github.com/emandor/quiz_service/internal/telemetry"
)

type Handler struct {
	cfg *config.Config
	svc *Service
}

func NewHandler(cfg *config.Config, svc *Service) *Handler {
	return &Handler{cfg: cfg, svc: svc}
}

var badBody = apperr.Invalid("Invalid request body")

func (h *Handler) Register(c *fiber.Ctx) error {
	var in RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return httpx.Fail(c, badBody, nil)
	}
	id, err := h.svc.Register(c.UserContext(), in)
	if err != nil {
		return httpx.Fail(c, err, nil)
	}
	return httpx.OK(c, fiber.Map{"message": "Registration successful!", "user_id": id})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Fail(c, badBody, nil)
	}
	sess, err := h.svc.Login(c.UserContext(), req.Username, req.Password, meta(c))
	if errors.Is(err, apperr.ErrNotFound) {
		// unknown account and wrong password look the same to the caller
		err = apperr.ErrInvalidCredentials
	}
	if err != nil {
		return httpx.Fail(c, err, nil)
	}
	h.setSessionCookie(c, sess.ID)
	return httpx.OK(c, fiber.Map{"message": "Login successful!", "user": sessionUser(sess)})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.svc.Logout(c.UserContext(), c.Cookies(h.cfg.SessionCookieName)); err != nil {
		log := telemetry.Module("auth").With().Str("req_id", middleware.RequestIDFrom(c)).Logger()
		log.Error().Err(err).Msg("logout_failed")
	}
	h.clearSessionCookie(c)

	if strings.EqualFold(c.Get(fiber.HeaderXRequestedWith), "XMLHttpRequest") {
		return httpx.OK(c, fiber.Map{"message": "Logged out successfully"})
	}
	return c.Redirect(h.cfg.LogoutRedirect, fiber.StatusFound)
}

func (h *Handler) CheckLoginStatus(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return httpx.OK(c, fiber.Map{"isLoggedIn": false})
	}
	return httpx.OK(c, fiber.Map{"isLoggedIn": true, "user": sessionUser(sess)})
}

func (h *Handler) GetUserProfile(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	p, err := h.svc.Profile(c.UserContext(), sess.UserID)
	if err != nil {
		return httpx.Fail(c, err, nil)
	}
	return httpx.OK(c, fiber.Map{"user": p})
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	var in ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return httpx.Fail(c, badBody, nil)
	}
	u, err := h.svc.UpdateProfile(c.UserContext(), sess.UserID, in)
	if err != nil {
		return httpx.Fail(c, err, nil)
	}
	h.syncSession(c, sess, u)
	return httpx.OK(c, fiber.Map{"message": "Profile updated successfully", "user": sessionUser(sess)})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Fail(c, badBody, nil)
	}
	err := h.svc.ChangePassword(c.UserContext(), sess.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return httpx.Fail(c, err, httpx.Messages{
			apperr.ErrInvalidCredentials: "Current password is incorrect",
		})
	}
	return httpx.OK(c, fiber.Map{"message": "Password changed successfully"})
}

type resetPasswordRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Fail(c, badBody, nil)
	}
	if err := h.svc.ResetPassword(c.UserContext(), req.Username, req.Email, req.NewPassword); err != nil {
		return httpx.Fail(c, err, httpx.Messages{
			apperr.ErrNotFound: "Username and email do not match",
		})
	}
	return httpx.OK(c, fiber.Map{"message": "Password reset successfully"})
}

// syncSession pushes changed display fields into the live session. A failure
// only leaves stale display data until the next login.
func (h *Handler) syncSession(c *fiber.Ctx, sess *model.Session, u *model.User) {
	if err := h.svc.SyncSession(c.UserContext(), sess, u); err != nil {
		log := telemetry.Module("auth").With().Str("req_id", middleware.RequestIDFrom(c)).Logger()
		log.Warn().Err(err).Int64("user_id", u.ID).Msg("session_sync_failed")
	}
}

// RefreshCookie re-issues the cookie with a full Max-Age for an active session.
func (h *Handler) RefreshCookie(c *fiber.Ctx, s *model.Session) {
	h.setSessionCookie(c, s.ID)
}

func (h *Handler) setSessionCookie(c *fiber.Ctx, sid string) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cfg.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   int(h.cfg.SessionTTL / time.Second),
	})
}

func (h *Handler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cfg.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}

func meta(c *fiber.Ctx) model.SessionMeta {
	return model.SessionMeta{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
}

func sessionUser(s *model.Session) fiber.Map {
	pic := s.ProfilePicture
	if pic == "" {
		pic = model.DefaultPicture
	}
	return fiber.Map{
		"id":              s.UserID,
		"username":        s.Username,
		"full_name":       s.FullName,
		"profile_picture": pic,
	}
}
