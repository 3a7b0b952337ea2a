package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"golang.org/x/time/rate"

	"github.com/emandor/quiz_service/internal/config"
)

func RateLimiter(cfg *config.Config) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many requests",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			path := c.Path()
			// static avatars and health check are not limited
			return path == "/healthz" || strings.HasPrefix(path, "/avatars/")
		},
	})
}

// LoginThrottle is a per-IP token bucket in front of the credential endpoints.
// Idle buckets are dropped after idleTTL.
func LoginThrottle(rps float64, burst int) fiber.Handler {
	t := newThrottle(rate.Limit(rps), burst, 10*time.Minute)
	return func(c *fiber.Ctx) error {
		if !t.allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many attempts, please try again later",
			})
		}
		return c.Next()
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

type throttle struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	buckets map[string]*bucket
	swept   time.Time
	now     func() time.Time
}

func newThrottle(rps rate.Limit, burst int, idleTTL time.Duration) *throttle {
	if burst < 1 {
		burst = 1
	}
	return &throttle{rps: rps, burst: burst, idleTTL: idleTTL, buckets: map[string]*bucket{}, now: time.Now}
}

func (t *throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.swept) > t.idleTTL {
		for k, b := range t.buckets {
			if now.Sub(b.seen) > t.idleTTL {
				delete(t.buckets, k)
			}
		}
		t.swept = now
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.rps, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
