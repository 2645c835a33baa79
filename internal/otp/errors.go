package otp

import "errors"

var (
	// ErrInvalidPhone indicates the raw phone number could not be normalized.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrRateLimited indicates the provider refused to send another code yet.
	ErrRateLimited = errors.New("verification rate limited")
	// ErrQuotaExceeded indicates the provider's sending quota is exhausted.
	ErrQuotaExceeded = errors.New("verification quota exceeded")
	// ErrChallengeFailed indicates the bot-mitigation challenge was rejected
	// or has expired; the bridge must be torn down before retrying.
	ErrChallengeFailed = errors.New("challenge verification failed")
	// ErrInvalidCode indicates the submitted code did not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrCodeExpired indicates the submitted code is no longer valid.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrTooManyAttempts indicates the attempt cap for one code was reached.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrNoPending indicates Confirm was called with no dispatch in flight.
	ErrNoPending = errors.New("no pending verification")
)

// Invalidating reports whether err leaves the challenge or pending code
// unusable, so the bridge must be torn down before another attempt.
func Invalidating(err error) bool {
	return errors.Is(err, ErrChallengeFailed) ||
		errors.Is(err, ErrTooManyAttempts) ||
		errors.Is(err, ErrCodeExpired)
}

// UserMessage maps a bridge error to the fixed text shown to the shopper.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPhone):
		return "Please enter a valid phone number."
	case errors.Is(err, ErrRateLimited):
		return "Too many attempts. Please wait a moment before trying again."
	case errors.Is(err, ErrQuotaExceeded):
		return "SMS verification is temporarily unavailable. Please try again later."
	case errors.Is(err, ErrChallengeFailed):
		return "Verification check failed. Please retry."
	case errors.Is(err, ErrInvalidCode):
		return "That code is incorrect. Please check and try again."
	case errors.Is(err, ErrCodeExpired):
		return "That code has expired. Please request a new one."
	case errors.Is(err, ErrTooManyAttempts):
		return "Too many incorrect codes. Please request a new one."
	case errors.Is(err, ErrNoPending):
		return "No verification in progress. Please request a code first."
	default:
		return "Something went wrong. Please try again."
	}
}
