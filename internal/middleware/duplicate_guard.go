package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ricemart/ricemart-auth/internal/auth"
)

const duplicatePrefix = "dup:v1:"

// DuplicateGuard rejects a second unsafe request from the same device for
// the same route while the first is still running. The controller has its
// own per-operation guard; this one catches duplicates before they cross
// process boundaries when the gateway runs more than one replica.
func DuplicateGuard(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		deviceID, _ := c.Locals(auth.DeviceIDKey).(string)
		if cache == nil || deviceID == "" {
			return c.Next()
		}

		key := duplicatePrefix + deviceID + ":" + c.Method() + ":" + c.Path()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		reserved, err := cache.SetNX(ctx, key, "1", ttl).Result()
		if err != nil {
			logger.Warn("duplicate guard unavailable", "error", err)
			return c.Next() // fail-open on cache errors
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "request already in progress")
		}

		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			cache.Del(cleanupCtx, key)
		}()
		return c.Next()
	}
}
