package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/emandor/quiz_service/internal/middleware"
)

func newGoogleApp(t *testing.T, email string, verified bool, domains ...string) (*fiber.App, *fixture) {
	t.Helper()
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"sub": "g-1", "email": email, "email_verified": verified})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(provider.Close)

	f := newFixture(t)
	cfg := testConfig()
	cfg.OAuthAllowedDomains = domains
	g := NewGoogle(NewHandler(cfg, f.svc))
	g.oauth.Endpoint = oauth2.Endpoint{AuthURL: provider.URL + "/auth", TokenURL: provider.URL + "/token"}
	g.userinfoURL = provider.URL + "/userinfo"

	app := fiber.New()
	app.Use(middleware.RequestID())
	app.Get("/api/auth/google/login", g.Login)
	app.Get("/api/auth/google/callback", g.Callback)
	return app, f
}

func callback(t *testing.T, app *fiber.App, state string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=abc&state="+state, nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "st4te"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestGoogleLoginRedirectsWithState(t *testing.T) {
	app, _ := newGoogleApp(t, "ana@example.com", true)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	var state string
	for _, c := range resp.Cookies() {
		if c.Name == stateCookie {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Equal(t, state, loc.Query().Get("state"))
}

func TestGoogleCallbackStateMismatch(t *testing.T) {
	app, _ := newGoogleApp(t, "ana@example.com", true)

	resp := callback(t, app, "other")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGoogleCallbackSignsInExistingAccount(t *testing.T) {
	app, f := newGoogleApp(t, "ana@example.com", true)
	id := f.register(t, "ana", "ana@example.com", "secret1")

	resp := callback(t, app, "st4te")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://client.test/", resp.Header.Get("Location"))

	u, ok := f.svc.CurrentUser(context.Background(), sessionCookie(t, resp).Value)
	require.True(t, ok)
	assert.Equal(t, id, u.ID)
}

func TestGoogleCallbackUnknownOrRejectedEmail(t *testing.T) {
	app, _ := newGoogleApp(t, "stranger@example.com", true)
	resp := callback(t, app, "st4te")
	assert.Equal(t, "http://client.test/login.html?error=no_account", resp.Header.Get("Location"))

	app, f := newGoogleApp(t, "ana@example.com", true, "school.edu")
	f.register(t, "ana", "ana@example.com", "secret1")
	resp = callback(t, app, "st4te")
	assert.Equal(t, "http://client.test/login.html?error=email_not_allowed", resp.Header.Get("Location"))

	app, f = newGoogleApp(t, "ana@example.com", false)
	f.register(t, "ana", "ana@example.com", "secret1")
	resp = callback(t, app, "st4te")
	assert.Equal(t, "http://client.test/login.html?error=email_not_allowed", resp.Header.Get("Location"))
}

func TestEmailAllowed(t *testing.T) {
	assert.True(t, emailAllowed("a@x.io", nil))
	assert.True(t, emailAllowed("A@School.EDU", []string{"school.edu"}))
	assert.False(t, emailAllowed("a@notschool.edu.evil", []string{"school.edu"}))
}
