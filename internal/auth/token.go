package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired peeks at a stored access credential's exp claim without
// verifying the signature; verification is the backend's job. A credential
// that cannot be parsed or carries no expiry is not provably expired, so
// revalidation proceeds and the backend gets the final say.
func tokenExpired(token string, now time.Time) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now)
}
