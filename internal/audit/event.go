// Package audit keeps the back-office trail of authentication events.
// Recording is best effort: a broken trail never fails a login.
package audit

import "time"

// Event kinds recorded by the gateway.
const (
	KindOTPRequested        = "otp_requested"
	KindOTPResent           = "otp_resent"
	KindSignupAccepted      = "signup_accepted"
	KindLoginSucceeded      = "login_succeeded"
	KindLoginFailed         = "login_failed"
	KindLogout              = "logout"
	KindRevalidationFailed  = "session_revalidation_failed"
	KindVerificationStarted = "verification_started"
)

// Event is one authentication lifecycle occurrence.
type Event struct {
	ID        string
	DeviceID  string
	Phone     string
	Kind      string
	Detail    string
	CreatedAt time.Time
}
