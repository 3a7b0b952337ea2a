package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "root:@tcp(127.0.0.1:3306)/quiz_system?parseTime=true")

	c := Load()
	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "quiz_sid", c.SessionCookieName)
	assert.Equal(t, 168*time.Hour, c.SessionTTL)
	assert.Equal(t, []string{".jpg", ".jpeg", ".png"}, c.AllowedFileExt)
	assert.False(t, c.GoogleEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "dsn")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_REDIRECT_URL", "http://localhost/cb")
	t.Setenv("LOGIN_RPS", "0.5")

	c := Load()
	assert.Equal(t, 2*time.Hour, c.SessionTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORSOrigins)
	assert.True(t, c.GoogleEnabled())
	assert.InDelta(t, 0.5, c.LoginRPS, 1e-9)
}
