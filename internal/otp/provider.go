// Package otp wraps the third-party SMS one-time-code identity provider.
// The provider refuses to dispatch codes without a bot-mitigation challenge,
// so the connector models both resources explicitly.
package otp

import "context"

// Provider is a connector to the external phone-verification service.
type Provider interface {
	// CreateChallenge provisions a bot-mitigation challenge. Challenges are
	// expensive and survive multiple send attempts within one verification
	// session; Close releases the provider-side resource.
	CreateChallenge(ctx context.Context) (Challenge, error)
	// SendCode dispatches a one-time code to the phone number, which must
	// already be in canonical +<countrycode><digits> form.
	SendCode(ctx context.Context, phone string, ch Challenge) (Confirmation, error)
}

// Challenge is a live bot-mitigation handle. A closed challenge must never
// be reused; the provider rejects submissions against it opaquely.
type Challenge interface {
	ID() string
	Close()
}

// Confirmation is the pending half of one code dispatch. Confirm exchanges
// the user-entered code for an opaque identity token proving phone ownership.
type Confirmation interface {
	Confirm(ctx context.Context, code string) (string, error)
}
