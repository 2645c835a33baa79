package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ricemart/ricemart-auth/internal/backend"
	"github.com/ricemart/ricemart-auth/internal/identity"
	"github.com/ricemart/ricemart-auth/internal/otp"
)

// Handler exposes the gateway's auth surface to the storefront. Paths and
// payload field names mirror the backend contract so the storefront client
// does not care which hop it is talking to.
type Handler struct {
	manager *Manager
}

// NewHandler builds the HTTP-facing layer over the controller manager.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// DeviceIDKey is the fiber.Ctx local under which middleware stores the
// device identifier.
const DeviceIDKey = "device_id"

func (h *Handler) controller(c *fiber.Ctx) *Controller {
	deviceID, _ := c.Locals(DeviceIDKey).(string)
	// The identifier may be backed by fiber's reusable request buffer;
	// clone it before the manager retains it past this request.
	ctrl := h.manager.Controller(strings.Clone(deviceID))
	// Ordering guarantee: nothing is reliable before bootstrap resolves.
	ctrl.Bootstrap(c.UserContext())
	return ctrl
}

// Signup registers a new account.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req identity.SignupData
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.controller(c).Signup(c.UserContext(), req); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"status": "registered"})
}

type loginRequest struct {
	Phone    string `json:"mobile_number"`
	Password string `json:"password"`
}

// Login triggers the customer OTP dispatch. A success response means a code
// is on its way, not that a session exists.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.controller(c).Login(c.UserContext(), req.Phone, ""); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "otp_sent"})
}

// AdminLogin performs the password-protected login and establishes the
// session synchronously.
func (h *Handler) AdminLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "password is required")
	}
	ctrl := h.controller(c)
	if err := ctrl.Login(c.UserContext(), req.Phone, req.Password); err != nil {
		return httpError(err)
	}
	return sessionResponse(c, ctrl)
}

type verifyRequest struct {
	Phone string `json:"mobile_number"`
	Code  string `json:"otp"`
}

// VerifyOTP finalizes the customer login.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ctrl := h.controller(c)
	if err := ctrl.VerifyOTP(c.UserContext(), req.Phone, req.Code); err != nil {
		return httpError(err)
	}
	return sessionResponse(c, ctrl)
}

// ResendOTP re-triggers the login code dispatch.
func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.controller(c).ResendOTP(c.UserContext(), req.Phone); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "otp_sent"})
}

type phoneRequest struct {
	Phone string `json:"phone_number"`
	Code  string `json:"verification_code"`
}

// StartVerification begins the signup phone-ownership proof.
func (h *Handler) StartVerification(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.controller(c).StartVerification(c.UserContext(), req.Phone); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}

// VerifyPhoneCode confirms the dispatched code.
func (h *Handler) VerifyPhoneCode(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if _, err := h.controller(c).ConfirmVerification(c.UserContext(), req.Code); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}

// CancelVerification abandons the attempt, releasing provider resources.
func (h *Handler) CancelVerification(c *fiber.Ctx) error {
	h.controller(c).CancelVerification()
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}

// Session reports the device's current authentication state.
func (h *Handler) Session(c *fiber.Ctx) error {
	return sessionResponse(c, h.controller(c))
}

// UpdateProfile applies a partial profile change.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	var req identity.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ctrl := h.controller(c)
	if err := ctrl.UpdateProfile(c.UserContext(), req); err != nil {
		return httpError(err)
	}
	return sessionResponse(c, ctrl)
}

// Logout clears the device's session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	h.controller(c).Logout(c.UserContext())
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

func sessionResponse(c *fiber.Ctx, ctrl *Controller) error {
	status, user := ctrl.CurrentUser()
	body := fiber.Map{"status": status.String()}
	if user != nil {
		body["user"] = user
	}
	return c.Status(http.StatusOK).JSON(body)
}

// httpError maps controller errors onto the gateway's response taxonomy.
// Backend-supplied messages pass through verbatim; everything else gets the
// fixed text for its error kind or a generic fallback.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotAuthenticated):
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, ErrOperationInFlight):
		return fiber.NewError(http.StatusConflict, "request already in progress")
	case errors.Is(err, ErrBadGrant):
		return fiber.NewError(http.StatusBadGateway, "backend returned an unusable session")
	case errors.Is(err, otp.ErrRateLimited):
		return fiber.NewError(http.StatusTooManyRequests, otp.UserMessage(err))
	case errors.Is(err, otp.ErrInvalidPhone),
		errors.Is(err, otp.ErrQuotaExceeded),
		errors.Is(err, otp.ErrChallengeFailed),
		errors.Is(err, otp.ErrInvalidCode),
		errors.Is(err, otp.ErrCodeExpired),
		errors.Is(err, otp.ErrTooManyAttempts),
		errors.Is(err, otp.ErrNoPending):
		return fiber.NewError(http.StatusBadRequest, otp.UserMessage(err))
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "something went wrong, please try again"
		}
		return fiber.NewError(apiErr.Status, message)
	}
	return fiber.NewError(http.StatusBadGateway, "something went wrong, please try again")
}
