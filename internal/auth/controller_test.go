package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ricemart/ricemart-auth/internal/audit"
	"github.com/ricemart/ricemart-auth/internal/backend"
	"github.com/ricemart/ricemart-auth/internal/identity"
	"github.com/ricemart/ricemart-auth/internal/logging"
	"github.com/ricemart/ricemart-auth/internal/otp"
	"github.com/ricemart/ricemart-auth/internal/session"
	"github.com/ricemart/ricemart-auth/internal/verifyflow"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	registerErr error
	requestErr  error
	resendErr   error

	adminGrant backend.Grant
	adminErr   error
	adminGate  chan struct{}

	verifyGrant backend.Grant
	verifyErr   error

	meUser identity.User
	meErr  error

	updateErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}}
}

func (f *fakeBackend) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeBackend) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeBackend) Register(_ context.Context, _ identity.SignupData) error {
	f.count("register")
	return f.registerErr
}

func (f *fakeBackend) RequestOTP(_ context.Context, _ string) error {
	f.count("request_otp")
	return f.requestErr
}

func (f *fakeBackend) AdminLogin(_ context.Context, _, _ string) (backend.Grant, error) {
	f.count("admin_login")
	if f.adminGate != nil {
		<-f.adminGate
	}
	if f.adminErr != nil {
		return backend.Grant{}, f.adminErr
	}
	return f.adminGrant, nil
}

func (f *fakeBackend) VerifyOTP(_ context.Context, _, _ string) (backend.Grant, error) {
	f.count("verify_otp")
	if f.verifyErr != nil {
		return backend.Grant{}, f.verifyErr
	}
	return f.verifyGrant, nil
}

func (f *fakeBackend) ResendOTP(_ context.Context, _ string) error {
	f.count("resend_otp")
	return f.resendErr
}

func (f *fakeBackend) CurrentUser(_ context.Context, _ string) (identity.User, error) {
	f.count("me")
	if f.meErr != nil {
		return identity.User{}, f.meErr
	}
	return f.meUser, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, _ string, update identity.ProfileUpdate) (identity.User, error) {
	f.count("update_profile")
	if f.updateErr != nil {
		return identity.User{}, f.updateErr
	}
	merged := f.meUser
	if update.Email != nil {
		merged.Email = *update.Email
	}
	if update.Name != nil {
		merged.Name = *update.Name
	}
	f.meUser = merged
	return merged, nil
}

func (f *fakeBackend) StartPhoneVerification(_ context.Context, _ string) error {
	f.count("start_phone")
	return nil
}

func (f *fakeBackend) ConfirmPhoneVerification(_ context.Context, _, _ string) error {
	f.count("confirm_phone")
	return nil
}

type fakeChallenge struct{ closed bool }

func (c *fakeChallenge) ID() string { return "ch" }
func (c *fakeChallenge) Close()     { c.closed = true }

type fakeProvider struct {
	challenge  *fakeChallenge
	confirmErr error
}

func (p *fakeProvider) CreateChallenge(_ context.Context) (otp.Challenge, error) {
	p.challenge = &fakeChallenge{}
	return p.challenge, nil
}

func (p *fakeProvider) SendCode(_ context.Context, _ string, _ otp.Challenge) (otp.Confirmation, error) {
	return p, nil
}

func (p *fakeProvider) Confirm(_ context.Context, _ string) (string, error) {
	if p.confirmErr != nil {
		return "", p.confirmErr
	}
	return "identity-token", nil
}

func grantFor(phone string) backend.Grant {
	return backend.Grant{
		Access:  "access-" + phone,
		Refresh: "refresh-" + phone,
		User:    identity.User{Phone: phone, Name: "Asha", IsVerified: true},
	}
}

func newTestController(api backend.Client, store session.Store) (*Controller, *fakeProvider) {
	provider := &fakeProvider{}
	bridge := otp.NewBridge(provider, "+91", logging.Discard())
	recorder := audit.NewRecorder(audit.NewMemoryRepository(), logging.Discard())
	return NewController("device-1", store, api, bridge, recorder, logging.Discard()), provider
}

func TestBootstrapWithoutStoredSession(t *testing.T) {
	api := newFakeBackend()
	ctrl, _ := newTestController(api, session.NewMemoryStore())

	ctrl.Bootstrap(context.Background())

	status, user := ctrl.CurrentUser()
	if status != StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", status)
	}
	if user != nil {
		t.Fatalf("expected no user, got %+v", user)
	}
	if api.totalCalls() != 0 {
		t.Fatalf("bootstrap with no session must make zero network calls, got %d", api.totalCalls())
	}
}

func TestBootstrapRevalidatesAndRefreshesSnapshot(t *testing.T) {
	api := newFakeBackend()
	api.meUser = identity.User{Phone: "9876543210", Name: "Asha Fresh", IsVerified: true}

	store := session.NewMemoryStore()
	ctx := context.Background()
	stale := identity.User{Phone: "9876543210", Name: "Asha Stale"}
	if err := store.Save(ctx, session.Session{AccessToken: "opaque-access", RefreshToken: "opaque-refresh", User: stale}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	ctrl, _ := newTestController(api, store)
	ctrl.Bootstrap(ctx)

	status, user := ctrl.CurrentUser()
	if status != StatusAuthenticated {
		t.Fatalf("expected authenticated, got %v", status)
	}
	if user == nil || user.Name != "Asha Fresh" {
		t.Fatalf("expected fresh snapshot, got %+v", user)
	}

	persisted, _ := store.Load(ctx)
	if persisted.User.Name != "Asha Fresh" {
		t.Fatalf("expected re-persisted snapshot, got %+v", persisted.User)
	}

	// Bootstrap is once-only.
	ctrl.Bootstrap(ctx)
	if api.callCount("me") != 1 {
		t.Fatalf("expected one revalidation, got %d", api.callCount("me"))
	}
}

func TestBootstrapRejectedCredentialClearsSession(t *testing.T) {
	api := newFakeBackend()
	api.meErr = &backend.APIError{Status: http.StatusUnauthorized}

	store := session.NewMemoryStore()
	ctx := context.Background()
	store.Save(ctx, session.Session{AccessToken: "a", RefreshToken: "r", User: identity.User{Phone: "9876543210"}})

	ctrl, _ := newTestController(api, store)
	ctrl.Bootstrap(ctx)

	status, _ := ctrl.CurrentUser()
	if status != StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", status)
	}
	persisted, _ := store.Load(ctx)
	if persisted.Complete() {
		t.Fatal("expected session wiped after failed revalidation")
	}
}

func TestBootstrapExpiredCredentialSkipsRevalidation(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "9876543210",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	api := newFakeBackend()
	store := session.NewMemoryStore()
	ctx := context.Background()
	store.Save(ctx, session.Session{AccessToken: signed, RefreshToken: "r", User: identity.User{Phone: "9876543210"}})

	ctrl, _ := newTestController(api, store)
	ctrl.Bootstrap(ctx)

	if api.callCount("me") != 0 {
		t.Fatal("provably expired credential must not be revalidated")
	}
	status, _ := ctrl.CurrentUser()
	if status != StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", status)
	}
}

func TestOTPLoginRequestTouchesNoSessionState(t *testing.T) {
	api := newFakeBackend()
	store := session.NewMemoryStore()
	ctrl, _ := newTestController(api, store)
	ctx := context.Background()
	ctrl.Bootstrap(ctx)

	if err := ctrl.Login(ctx, "9876543210", ""); err != nil {
		t.Fatalf("otp login request: %v", err)
	}

	if api.callCount("request_otp") != 1 {
		t.Fatalf("expected one dispatch, got %d", api.callCount("request_otp"))
	}
	status, _ := ctrl.CurrentUser()
	if status != StatusUnauthenticated {
		t.Fatal("otp dispatch must not authenticate")
	}
	persisted, _ := store.Load(ctx)
	if persisted.Complete() {
		t.Fatal("otp dispatch must not persist a session")
	}
}

func TestScenarioCustomerOTPLogin(t *testing.T) {
	api := newFakeBackend()
	api.verifyGrant = grantFor("9876543210")
	store := session.NewMemoryStore()
	ctrl, _ := newTestController(api, store)
	ctx := context.Background()
	ctrl.Bootstrap(ctx)

	if err := ctrl.Login(ctx, "9876543210", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := ctrl.VerifyOTP(ctx, "9876543210", "12345"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	status, user := ctrl.CurrentUser()
	if status != StatusAuthenticated || user == nil || user.Phone != "9876543210" {
		t.Fatalf("expected authenticated session, got %v %+v", status, user)
	}
	persisted, _ := store.Load(ctx)
	if !persisted.Complete() {
		t.Fatal("expected complete persisted session")
	}

	// Scenario C: logout empties everything.
	ctrl.Logout(ctx)
	status, user = ctrl.CurrentUser()
	if status != StatusUnauthenticated || user != nil {
		t.Fatalf("expected logged out, got %v %+v", status, user)
	}
	persisted, _ = store.Load(ctx)
	if persisted.AccessToken != "" || persisted.RefreshToken != "" || persisted.User.Phone != "" {
		t.Fatalf("expected all three keys cleared, got %+v", persisted)
	}
}

func TestScenarioAdminLoginFailureLeavesSessionUntouched(t *testing.T) {
	api := newFakeBackend()
	api.adminErr = &backend.APIError{Status: http.StatusUnauthorized, Message: "invalid credentials"}

	store := session.NewMemoryStore()
	ctx := context.Background()
	prior := session.Session{AccessToken: "prior-a", RefreshToken: "prior-r", User: identity.User{Phone: "9876543210", Name: "Prior"}}
	api.meUser = prior.User
	store.Save(ctx, prior)

	ctrl, _ := newTestController(api, store)
	ctrl.Bootstrap(ctx)

	err := ctrl.Login(ctx, "9999999999", "WrongPass")
	if err == nil {
		t.Fatal("expected admin login failure")
	}
	if backend.UserMessage(err) != "invalid credentials" {
		t.Fatalf("expected backend message surfaced, got %q", backend.UserMessage(err))
	}

	persisted, _ := store.Load(ctx)
	if persisted.AccessToken != prior.AccessToken || persisted.User.Name != "Prior" {
		t.Fatalf("prior session must be untouched, got %+v", persisted)
	}
}

func TestFailedPersistLeavesStateUntouched(t *testing.T) {
	api := newFakeBackend()
	api.verifyGrant = grantFor("9876543210")

	ctrl, _ := newTestController(api, session.NewFailingStore())
	ctx := context.Background()
	ctrl.Bootstrap(ctx)

	err := ctrl.VerifyOTP(ctx, "9876543210", "12345")
	if err == nil {
		t.Fatal("expected persist failure to surface")
	}
	status, user := ctrl.CurrentUser()
	if status == StatusAuthenticated || user != nil {
		t.Fatal("a session that could not be persisted must not be established")
	}
}

func TestIncompleteGrantRejected(t *testing.T) {
	api := newFakeBackend()
	api.verifyGrant = backend.Grant{Access: "a", User: identity.User{Phone: "9876543210"}}

	store := session.NewMemoryStore()
	ctrl, _ := newTestController(api, store)
	ctx := context.Background()
	ctrl.Bootstrap(ctx)

	if err := ctrl.VerifyOTP(ctx, "9876543210", "12345"); !errors.Is(err, ErrBadGrant) {
		t.Fatalf("expected ErrBadGrant, got %v", err)
	}
	persisted, _ := store.Load(ctx)
	if persisted.AccessToken != "" {
		t.Fatal("incomplete grant must not be persisted")
	}
}

func TestProfileUpdateRoundTrip(t *testing.T) {
	api := newFakeBackend()
	api.adminGrant = grantFor("9876543210")
	api.meUser = api.adminGrant.User

	store := session.NewMemoryStore()
	ctrl, _ := newTestController(api, store)
	ctx := context.Background()
	ctrl.Bootstrap(ctx)

	if err := ctrl.Login(ctx, "9876543210", "SecretPass1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	email := "a@b.com"
	if err := ctrl.UpdateProfile(ctx, identity.ProfileUpdate{Email: &email}); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	_, user := ctrl.CurrentUser()
	if user.Email != "a@b.com" {
		t.Fatalf("expected updated email, got %q", user.Email)
	}
	if user.Phone != "9876543210" || user.Name != "Asha" {
		t.Fatalf("other fields must be unchanged, got %+v", user)
	}
	persisted, _ := store.Load(ctx)
	if persisted.User.Email != "a@b.com" {
		t.Fatal("expected updated snapshot re-persisted")
	}
}

func TestProfileUpdateRequiresSession(t *testing.T) {
	api := newFakeBackend()
	ctrl, _ := newTestController(api, session.NewMemoryStore())
	ctx := context.Background()
	ctrl.Bootstrap(ctx)

	email := "a@b.com"
	if err := ctrl.UpdateProfile(ctx, identity.ProfileUpdate{Email: &email}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if api.callCount("update_profile") != 0 {
		t.Fatal("unauthenticated update must not reach the backend")
	}
}

func TestDuplicateLoginSuppressed(t *testing.T) {
	api := newFakeBackend()
	api.adminGate = make(chan struct{})
	api.adminGrant = grantFor("9876543210")

	ctrl, _ := newTestController(api, session.NewMemoryStore())
	ctx := context.Background()
	ctrl.Bootstrap(ctx)

	done := make(chan error, 1)
	go func() { done <- ctrl.Login(ctx, "9876543210", "SecretPass1") }()

	deadline := time.After(2 * time.Second)
	for api.callCount("admin_login") == 0 {
		select {
		case <-deadline:
			t.Fatal("first login never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := ctrl.Login(ctx, "9876543210", "SecretPass1"); !errors.Is(err, ErrOperationInFlight) {
		t.Fatalf("expected ErrOperationInFlight, got %v", err)
	}

	close(api.adminGate)
	if err := <-done; err != nil {
		t.Fatalf("first login: %v", err)
	}
	if api.callCount("admin_login") != 1 {
		t.Fatalf("expected exactly one backend call, got %d", api.callCount("admin_login"))
	}
}

func TestSignupValidatedLocally(t *testing.T) {
	api := newFakeBackend()
	ctrl, _ := newTestController(api, session.NewMemoryStore())

	err := ctrl.Signup(context.Background(), identity.SignupData{Phone: "12", Name: "A"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if api.callCount("register") != 0 {
		t.Fatal("invalid signup must not reach the backend")
	}
}

func TestConfirmVerificationTearsDownOnInvalidatingError(t *testing.T) {
	api := newFakeBackend()
	ctrl, provider := newTestController(api, session.NewMemoryStore())
	ctx := context.Background()

	if err := ctrl.StartVerification(ctx, "9876543210"); err != nil {
		t.Fatalf("start verification: %v", err)
	}

	provider.confirmErr = otp.ErrTooManyAttempts
	if _, err := ctrl.ConfirmVerification(ctx, "123456"); !errors.Is(err, otp.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if !provider.challenge.closed {
		t.Fatal("invalidating failure must dispose the challenge")
	}

	// Plain wrong codes keep the challenge alive for a retry.
	if err := ctrl.StartVerification(ctx, "9876543210"); err != nil {
		t.Fatalf("restart verification: %v", err)
	}
	provider.confirmErr = otp.ErrInvalidCode
	if _, err := ctrl.ConfirmVerification(ctx, "123456"); !errors.Is(err, otp.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if provider.challenge.closed {
		t.Fatal("retryable failure must keep the challenge")
	}
}

func TestVerificationFlowWiredThroughBridge(t *testing.T) {
	api := newFakeBackend()
	ctrl, _ := newTestController(api, session.NewMemoryStore())
	ctx := context.Background()

	if err := ctrl.StartVerification(ctx, "9876543210"); err != nil {
		t.Fatalf("start verification: %v", err)
	}

	var token string
	flow := ctrl.NewVerificationFlow("9876543210", verifyflowConfig(func(tok string) { token = tok }))
	defer flow.Close()

	for i, d := range []string{"1", "2", "3", "4", "5", "6"} {
		if err := flow.Enter(ctx, i, d); err != nil {
			t.Fatalf("enter %d: %v", i, err)
		}
	}
	if token != "identity-token" {
		t.Fatalf("expected identity token via completion callback, got %q", token)
	}
}

func verifyflowConfig(onSuccess func(string)) verifyflow.Config {
	return verifyflow.Config{
		CodeLength:   6,
		Tick:         time.Hour,
		ConfirmDelay: -1,
		OnSuccess:    onSuccess,
	}
}

func TestSubscribeObservesTransitions(t *testing.T) {
	api := newFakeBackend()
	api.verifyGrant = grantFor("9876543210")
	ctrl, _ := newTestController(api, session.NewMemoryStore())
	ctx := context.Background()

	var statuses []Status
	cancel := ctrl.Subscribe(func(s Status, _ *identity.User) {
		statuses = append(statuses, s)
	})
	defer cancel()

	ctrl.Bootstrap(ctx)
	if err := ctrl.VerifyOTP(ctx, "9876543210", "12345"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	ctrl.Logout(ctx)

	want := []Status{StatusUnknown, StatusUnauthenticated, StatusAuthenticated, StatusUnauthenticated}
	if len(statuses) != len(want) {
		t.Fatalf("expected %d notifications, got %d: %v", len(want), len(statuses), statuses)
	}
	for i, s := range want {
		if statuses[i] != s {
			t.Fatalf("notification %d: expected %v, got %v", i, s, statuses[i])
		}
	}
}
