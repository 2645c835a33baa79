package session

import "github.com/ricemart/ricemart-auth/internal/identity"

// Session is the persisted triple representing "currently logged in": the
// access credential, the refresh credential and the cached user snapshot.
// The three values travel together; a partial session is never authenticated.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         identity.User
}

// Complete reports whether all three parts of the session are present.
// Callers must treat an incomplete session exactly like "never logged in".
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.RefreshToken != "" && s.User.Phone != ""
}
