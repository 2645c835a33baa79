package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// OTPRateLimit caps code dispatches per phone so the gateway is not an SMS
// cannon. Falls back to the client IP when the body carries no phone, and
// fails open when Redis is unavailable.
func OTPRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Phone string `json:"mobile_number"`
		}
		_ = c.BodyParser(&req)
		phone := strings.TrimSpace(req.Phone)
		if phone == "" {
			phone = c.IP()
		}
		key := "rl:otp:" + phone
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many code requests, try again later")
		}
		return c.Next()
	}
}
