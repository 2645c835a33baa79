package otp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Bridge owns the two mutable provider resources for one verification
// session: the bot-mitigation challenge and the pending confirmation. There
// is exactly one slot for each; StartVerification and ConfirmCode write
// them, Teardown clears them. The challenge is memoized across resends but
// never survives Teardown, so a stale challenge cannot leak into an
// unrelated attempt.
type Bridge struct {
	provider Provider
	country  string
	logger   *slog.Logger

	mu        sync.Mutex
	challenge Challenge
	pending   Confirmation
	phone     string
}

// NewBridge builds a bridge around the given provider. country is the
// default dialing prefix applied to bare local numbers, e.g. "+91".
func NewBridge(provider Provider, country string, logger *slog.Logger) *Bridge {
	return &Bridge{provider: provider, country: country, logger: logger}
}

// StartVerification normalizes the phone number, ensures a live challenge
// and asks the provider to dispatch a code. Calling it again while a
// verification is pending reuses the existing challenge (resend).
func (b *Bridge) StartVerification(ctx context.Context, rawPhone string) error {
	phone, err := NormalizePhone(rawPhone, b.country)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.challenge == nil {
		ch, err := b.provider.CreateChallenge(ctx)
		if err != nil {
			return fmt.Errorf("create challenge: %w", err)
		}
		b.challenge = ch
	}

	pending, err := b.provider.SendCode(ctx, phone, b.challenge)
	if err != nil {
		b.logger.Warn("code dispatch failed", "error", err)
		return err
	}

	b.pending = pending
	b.phone = phone
	b.logger.Info("verification code dispatched", "phone", phone)
	return nil
}

// ConfirmCode submits the user-entered code against the pending
// confirmation and returns the provider's identity token on success.
func (b *Bridge) ConfirmCode(ctx context.Context, code string) (string, error) {
	b.mu.Lock()
	pending := b.pending
	b.mu.Unlock()

	if pending == nil {
		return "", ErrNoPending
	}

	token, err := pending.Confirm(ctx, code)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Pending reports whether a code dispatch is awaiting confirmation.
func (b *Bridge) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}

// Phone returns the canonical number of the verification in progress.
func (b *Bridge) Phone() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phone
}

// Teardown disposes the challenge and drops the pending confirmation. It is
// the cancellation primitive: call it when the shopper backs out, or when a
// failure invalidates the challenge, so the next attempt starts fresh.
func (b *Bridge) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.challenge != nil {
		b.challenge.Close()
		b.challenge = nil
	}
	b.pending = nil
	b.phone = ""
}

// NormalizePhone canonicalizes raw into +<countrycode><digits> form.
// Bare ten digit local numbers get the default country prefix.
func NormalizePhone(raw, country string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}

	var digits string
	switch {
	case strings.HasPrefix(cleaned, "+"):
		digits = cleaned[1:]
	case len(cleaned) == 10:
		digits = strings.TrimPrefix(country, "+") + cleaned
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}

	if len(digits) < 8 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
		}
	}
	return "+" + digits, nil
}
