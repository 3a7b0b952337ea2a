package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort, BaseURL string
	DBDSN                    string
	RedisAddr, RedisPassword string
	RedisDB                  int

	SessionCookieName   string
	SessionCookieSecure bool
	SessionTTL          time.Duration
	LogoutRedirect      string
	CORSOrigins         []string

	GoogleClientID, GoogleClientSecret, GoogleRedirectURL string
	OAuthAllowedDomains                                   []string
	ClientURL                                             string

	BcryptCost int

	RateLimitMax    int
	RateLimitWindow time.Duration
	LoginRPS        float64
	LoginBurst      int

	AvatarDir          string
	AvatarMaxW         int
	AllowedMaxFileSize int
	AllowedFileExt     []string
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:              get("APP_ENV", "dev"),
		AppPort:             get("APP_PORT", "8080"),
		BaseURL:             get("APP_BASE_URL", "http://localhost:8080"),
		DBDSN:               must("DB_DSN"),
		RedisAddr:           get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:       get("REDIS_PASSWORD", ""),
		RedisDB:             atoi(get("REDIS_DB", "0")),
		SessionCookieName:   get("SESSION_COOKIE_NAME", "quiz_sid"),
		SessionCookieSecure: parseBool(get("SESSION_COOKIE_SECURE", "false")),
		SessionTTL:          mustDuration(get("SESSION_TTL", "168h")),
		LogoutRedirect:      get("LOGOUT_REDIRECT", "/login.html"),
		CORSOrigins:         split(get("CORS_ORIGINS", "http://localhost:5173")),
		GoogleClientID:      get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:   get("GOOGLE_REDIRECT_URL", ""),
		OAuthAllowedDomains: split(get("OAUTH_ALLOWED_DOMAINS", "")),
		ClientURL:           get("CLIENT_URL", ""),
		BcryptCost:          GetEnvInt("BCRYPT_COST", 10),
		RateLimitMax:        GetEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:     mustDuration(get("RATE_LIMIT_WINDOW", "30s")),
		LoginRPS:            parseFloat(get("LOGIN_RPS", "1")),
		LoginBurst:          GetEnvInt("LOGIN_BURST", 5),
		AvatarDir:           get("AVATAR_DIR", "./storage/avatars"),
		AvatarMaxW:          GetEnvInt("AVATAR_MAX_W", 256),
		AllowedMaxFileSize:  GetEnvInt("ALLOWED_MAX_FILE_SIZE", 2),
		AllowedFileExt:      GetEnvList("ALLOWED_FILE_EXT", []string{".jpg", ".jpeg", ".png"}),
	}
	return c
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func GetEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func GetEnvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		return strings.Split(v, ",")
	}
	return d
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}
func atoi(s string) int           { i, _ := strconv.Atoi(s); return i }
func parseBool(s string) bool     { b, _ := strconv.ParseBool(s); return b }
func parseFloat(s string) float64 { f, _ := strconv.ParseFloat(s, 64); return f }
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("bad duration %q: %v", s, err)
	}
	return d
}
func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
