// Package backend defines the consumed REST contract of the commerce
// backend's auth surface. Nothing here implements authentication; the
// backend is an external collaborator and this package only models the
// request/response shapes the gateway depends on.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/ricemart/ricemart-auth/internal/identity"
)

// Grant is the session-establishing response shape shared by the admin
// login and OTP verification endpoints.
type Grant struct {
	Access  string        `json:"access"`
	Refresh string        `json:"refresh"`
	User    identity.User `json:"user"`
}

// Client is the full set of backend operations the gateway consumes.
type Client interface {
	// Register creates an account. It establishes no session by itself.
	Register(ctx context.Context, data identity.SignupData) error
	// RequestOTP triggers dispatch of a login code to the given phone.
	RequestOTP(ctx context.Context, phone string) error
	// AdminLogin exchanges phone and password for a session grant.
	AdminLogin(ctx context.Context, phone, password string) (Grant, error)
	// VerifyOTP exchanges a dispatched login code for a session grant.
	VerifyOTP(ctx context.Context, phone, code string) (Grant, error)
	// ResendOTP re-triggers dispatch of the pending login code.
	ResendOTP(ctx context.Context, phone string) error
	// CurrentUser fetches the fresh user record for the access credential.
	CurrentUser(ctx context.Context, accessToken string) (identity.User, error)
	// UpdateProfile applies a partial change and returns the merged record.
	UpdateProfile(ctx context.Context, accessToken string, update identity.ProfileUpdate) (identity.User, error)
	// StartPhoneVerification asks the backend to begin proving phone ownership.
	StartPhoneVerification(ctx context.Context, phone string) error
	// ConfirmPhoneVerification submits the code for the pending verification.
	ConfirmPhoneVerification(ctx context.Context, phone, code string) error
}

// APIError is a non-2xx backend response. Message, when present, is the
// backend-supplied human-readable text and is surfaced verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend responded %d", e.Status)
}

// UserMessage extracts the backend-supplied message from err, or returns the
// empty string when there is none worth showing.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
