package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/evidenceledger/certchain/internal/cache"
)

// RateLimiter limits requests per client IP with a token bucket.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.Cache[*rate.Limiter]
}

// NewRateLimiter allows perSecond requests per second per client, with bursts
// of up to burst requests. Idle clients are forgotten after ten minutes.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: cache.New[*rate.Limiter](10 * time.Minute),
	}
}

// Middleware returns the rate limiting handler
func (r *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		limiter, loaded := r.limiters.GetOrSet(ip, func() *rate.Limiter {
			return rate.NewLimiter(r.limit, r.burst)
		}, 0)
		if loaded {
			// Refresh the expiration on every request
			r.limiters.Set(ip, limiter, 0)
		}

		if !limiter.Allow() {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter(r.limit)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many verification requests, slow down",
			})
		}

		return c.Next()
	}
}

func retryAfter(limit rate.Limit) int {
	if limit <= 0 {
		return 60
	}
	secs := int(1/float64(limit) + 0.999)
	if secs < 1 {
		secs = 1
	}
	return secs
}
