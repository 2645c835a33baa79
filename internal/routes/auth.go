package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ricemart/ricemart-auth/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints. Paths mirror the
// backend contract so the storefront client is none the wiser.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Signup)
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
		group.Post("/resend-otp", rateLimiter, h.ResendOTP)
	} else {
		group.Post("/login", h.Login)
		group.Post("/resend-otp", h.ResendOTP)
	}
	group.Post("/admin-login", h.AdminLogin)
	group.Post("/verify-otp", h.VerifyOTP)
	group.Post("/logout", h.Logout)
	group.Get("/session", h.Session)

	phone := group.Group("/phone")
	phone.Post("/start-verification", h.StartVerification)
	phone.Post("/verify-code", h.VerifyPhoneCode)
	phone.Post("/cancel-verification", h.CancelVerification)
}

// RegisterUserRoutes wires the profile endpoints.
func RegisterUserRoutes(r fiber.Router, h *auth.Handler) {
	group := r.Group("/users")
	group.Get("/me", h.Session)
	group.Put("/update_profile", h.UpdateProfile)
}
