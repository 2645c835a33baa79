package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ricemart/ricemart-auth/internal/auth"
)

const deviceIDHeader = "X-Device-ID"

// maxDeviceIDLen bounds the identifier so it stays usable as a cache key.
const maxDeviceIDLen = 128

// RequireDevice extracts the device identifier every auth route is scoped
// by. The storefront mints one per installation and sends it on every call;
// without it there is no session to speak of.
func RequireDevice() fiber.Handler {
	return func(c *fiber.Ctx) error {
		deviceID := c.Get(deviceIDHeader)
		if deviceID == "" {
			return fiber.NewError(http.StatusBadRequest, "missing "+deviceIDHeader+" header")
		}
		if len(deviceID) > maxDeviceIDLen {
			return fiber.NewError(http.StatusBadRequest, "device identifier too long")
		}
		c.Locals(auth.DeviceIDKey, deviceID)
		return c.Next()
	}
}
