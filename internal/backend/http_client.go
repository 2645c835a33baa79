package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ricemart/ricemart-auth/internal/identity"
)

// HTTPClient talks to the versioned backend API over plain JSON/HTTP.
type HTTPClient struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient builds a backend client rooted at the given API base URL,
// e.g. https://api.ricemart.example/api/v1.
func NewHTTPClient(base string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func (h *HTTPClient) Register(ctx context.Context, data identity.SignupData) error {
	return h.do(ctx, http.MethodPost, "/auth/register/", "", data, nil)
}

func (h *HTTPClient) RequestOTP(ctx context.Context, phone string) error {
	return h.do(ctx, http.MethodPost, "/auth/login/", "", map[string]string{"mobile_number": phone}, nil)
}

func (h *HTTPClient) AdminLogin(ctx context.Context, phone, password string) (Grant, error) {
	var grant Grant
	payload := map[string]string{"mobile_number": phone, "password": password}
	if err := h.do(ctx, http.MethodPost, "/auth/admin-login/", "", payload, &grant); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

func (h *HTTPClient) VerifyOTP(ctx context.Context, phone, code string) (Grant, error) {
	var grant Grant
	payload := map[string]string{"mobile_number": phone, "otp": code}
	if err := h.do(ctx, http.MethodPost, "/auth/verify-otp/", "", payload, &grant); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

func (h *HTTPClient) ResendOTP(ctx context.Context, phone string) error {
	return h.do(ctx, http.MethodPost, "/auth/resend-otp/", "", map[string]string{"mobile_number": phone}, nil)
}

func (h *HTTPClient) CurrentUser(ctx context.Context, accessToken string) (identity.User, error) {
	var user identity.User
	if err := h.do(ctx, http.MethodGet, "/users/me/", accessToken, nil, &user); err != nil {
		return identity.User{}, err
	}
	return user, nil
}

func (h *HTTPClient) UpdateProfile(ctx context.Context, accessToken string, update identity.ProfileUpdate) (identity.User, error) {
	var user identity.User
	if err := h.do(ctx, http.MethodPut, "/users/update_profile/", accessToken, update, &user); err != nil {
		return identity.User{}, err
	}
	return user, nil
}

func (h *HTTPClient) StartPhoneVerification(ctx context.Context, phone string) error {
	return h.do(ctx, http.MethodPost, "/auth/phone/start-verification/", "", map[string]string{"phone_number": phone}, nil)
}

func (h *HTTPClient) ConfirmPhoneVerification(ctx context.Context, phone, code string) error {
	payload := map[string]string{"phone_number": phone, "verification_code": code}
	return h.do(ctx, http.MethodPost, "/auth/phone/verify-code/", "", payload, nil)
}

// do performs a JSON request and decodes the response into out when non-nil.
// Non-2xx statuses become APIError carrying the backend's message field.
func (h *HTTPClient) do(ctx context.Context, method, path, accessToken string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: extractMessage(raw)}
		h.logger.Warn("backend call failed", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode backend response: %w", err)
		}
	}
	return nil
}

// extractMessage pulls the human-readable text out of a backend error body.
// The backend is inconsistent about the field name, so several are tried.
func extractMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	for _, m := range []string{body.Message, body.Detail, body.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}
