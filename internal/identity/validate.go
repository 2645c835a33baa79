package identity

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateSignup checks registration input before any network call is made.
func ValidateSignup(data SignupData) error {
	if err := validate.Struct(data); err != nil {
		return fmt.Errorf("invalid signup data: %w", err)
	}
	return nil
}

// ValidateProfileUpdate checks a partial profile change before it is sent.
func ValidateProfileUpdate(update ProfileUpdate) error {
	if err := validate.Struct(update); err != nil {
		return fmt.Errorf("invalid profile update: %w", err)
	}
	return nil
}

// ValidPhone reports whether raw looks like a ten digit local mobile number,
// the format the backend expects in mobile_number fields.
func ValidPhone(raw string) bool {
	if len(raw) != 10 {
		return false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
