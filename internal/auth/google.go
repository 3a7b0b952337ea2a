package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/middleware"
	"github.com/emandor/quiz_service/internal/telemetry"
)

const (
	stateCookie        = "oauth_state"
	googleUserinfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	googleCallbackWait = 15 * time.Second
)

// Google signs existing accounts in through Google. Accounts are only
// created by Register; an unknown email is sent back to the login page.
type Google struct {
	h           *Handler
	oauth       *oauth2.Config
	userinfoURL string
}

func NewGoogle(h *Handler) *Google {
	cfg := h.cfg
	return &Google{
		h: h,
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: googleUserinfoURL,
	}
}

func (g *Google) Login(c *fiber.Ctx) error {
	state, err := randomHex(16)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HTTPOnly: true,
		Secure:   g.h.cfg.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   600,
	})

	log := telemetry.Module("auth").With().Str("req_id", middleware.RequestIDFrom(c)).Logger()
	log.Info().Msg("google_login_redirect")
	return c.Redirect(g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), fiber.StatusFound)
}

func (g *Google) Callback(c *fiber.Ctx) error {
	log := telemetry.Module("auth").With().Str("req_id", middleware.RequestIDFrom(c)).Logger()

	state := c.Cookies(stateCookie)
	c.ClearCookie(stateCookie)
	if state == "" || state != c.Query("state") {
		log.Warn().Msg("oauth_state_mismatch")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid OAuth state"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), googleCallbackWait)
	defer cancel()

	tok, err := g.oauth.Exchange(ctx, c.Query("code"))
	if err != nil {
		log.Error().Err(err).Msg("oauth_exchange_failed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Google sign-in failed"})
	}
	ui, err := g.fetchUserinfo(ctx, tok)
	if err != nil {
		log.Error().Err(err).Msg("oauth_userinfo_failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false, "message": "Google sign-in failed"})
	}
	if !ui.EmailVerified || !emailAllowed(ui.Email, g.h.cfg.OAuthAllowedDomains) {
		log.Warn().Str("email", ui.Email).Msg("oauth_email_rejected")
		return g.backToLogin(c, "email_not_allowed")
	}

	sess, err := g.h.svc.LoginVerified(ctx, ui.Email, meta(c))
	if errors.Is(err, apperr.ErrNotFound) {
		log.Info().Str("email", ui.Email).Msg("oauth_no_account")
		return g.backToLogin(c, "no_account")
	}
	if err != nil {
		log.Error().Err(err).Msg("oauth_login_failed")
		return g.backToLogin(c, "server_error")
	}

	g.h.setSessionCookie(c, sess.ID)
	return c.Redirect(g.h.cfg.ClientURL+"/", fiber.StatusFound)
}

func (g *Google) backToLogin(c *fiber.Ctx, reason string) error {
	return c.Redirect(g.h.cfg.ClientURL+"/login.html?error="+url.QueryEscape(reason), fiber.StatusFound)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *Google) fetchUserinfo(ctx context.Context, tok *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}
	var ui googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	return &ui, nil
}

func emailAllowed(email string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	email = strings.ToLower(email)
	for _, d := range domains {
		if strings.HasSuffix(email, "@"+strings.ToLower(d)) {
			return true
		}
	}
	return false
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
