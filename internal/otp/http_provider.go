package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider talks to the hosted phone-verification service. The service
// requires a site-keyed bot-mitigation challenge before it will dispatch a
// code; challenge and confirmation handles are both server-side resources
// addressed by id.
type HTTPProvider struct {
	base    string
	apiKey  string
	siteKey string
	client  *http.Client
}

// NewHTTPProvider builds the connector for the hosted provider. apiKey
// authenticates the account, siteKey identifies the storefront origin to
// the bot-mitigation layer. Both are opaque configuration inputs.
func NewHTTPProvider(base, apiKey, siteKey string) *HTTPProvider {
	return &HTTPProvider{
		base:    strings.TrimRight(base, "/"),
		apiKey:  apiKey,
		siteKey: siteKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type httpChallenge struct {
	provider *HTTPProvider
	id       string
}

func (c *httpChallenge) ID() string { return c.id }

func (c *httpChallenge) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Best effort: a challenge the provider already expired is gone anyway.
	_ = c.provider.post(ctx, "/v1/challenge/"+c.id+"/dispose", nil, nil)
}

// CreateChallenge provisions a bot-mitigation challenge for the site key.
func (p *HTTPProvider) CreateChallenge(ctx context.Context) (Challenge, error) {
	var out struct {
		ChallengeID string `json:"challenge_id"`
	}
	if err := p.post(ctx, "/v1/challenge", map[string]string{"site_key": p.siteKey}, &out); err != nil {
		return nil, err
	}
	if out.ChallengeID == "" {
		return nil, ErrChallengeFailed
	}
	return &httpChallenge{provider: p, id: out.ChallengeID}, nil
}

// SendCode asks the provider to text a code, proving the challenge first.
func (p *HTTPProvider) SendCode(ctx context.Context, phone string, ch Challenge) (Confirmation, error) {
	if ch == nil {
		return nil, ErrChallengeFailed
	}
	payload := map[string]string{"phone_number": phone, "challenge_id": ch.ID()}
	var out struct {
		ConfirmationID string `json:"confirmation_id"`
	}
	if err := p.post(ctx, "/v1/verifications", payload, &out); err != nil {
		return nil, err
	}
	return &httpConfirmation{provider: p, id: out.ConfirmationID}, nil
}

type httpConfirmation struct {
	provider *HTTPProvider
	id       string
}

func (c *httpConfirmation) Confirm(ctx context.Context, code string) (string, error) {
	var out struct {
		IdentityToken string `json:"identity_token"`
	}
	payload := map[string]string{"code": code}
	if err := c.provider.post(ctx, "/v1/verifications/"+c.id+"/confirm", payload, &out); err != nil {
		return "", err
	}
	return out.IdentityToken, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode provider request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, body)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerError(raw, resp.StatusCode)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
	}
	return nil
}

// providerError maps the provider's error codes onto the bridge taxonomy.
func providerError(raw []byte, status int) error {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(raw, &body)

	switch body.Code {
	case "RATE_LIMITED":
		return ErrRateLimited
	case "QUOTA_EXCEEDED":
		return ErrQuotaExceeded
	case "CHALLENGE_FAILED", "CHALLENGE_EXPIRED":
		return ErrChallengeFailed
	case "CODE_INVALID":
		return ErrInvalidCode
	case "CODE_EXPIRED":
		return ErrCodeExpired
	case "INVALID_PHONE":
		return ErrInvalidPhone
	}
	if status == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return fmt.Errorf("provider responded %d", status)
}
