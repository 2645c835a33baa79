// Package auth orchestrates session establishment for one storefront
// device: bootstrap and revalidation, the dual-path login, OTP
// confirmation, profile updates and logout. It owns the in-memory current
// user and is the only writer of the session store.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ricemart/ricemart-auth/internal/audit"
	"github.com/ricemart/ricemart-auth/internal/backend"
	"github.com/ricemart/ricemart-auth/internal/identity"
	"github.com/ricemart/ricemart-auth/internal/otp"
	"github.com/ricemart/ricemart-auth/internal/session"
	"github.com/ricemart/ricemart-auth/internal/verifyflow"
)

// Status is the tri-state authentication state. Unknown lasts only until
// Bootstrap completes; consumers must not treat it as final.
type Status int

const (
	// StatusUnknown means Bootstrap has not finished yet.
	StatusUnknown Status = iota
	// StatusAuthenticated means a current user is set. During the
	// revalidation window this is optimistic and may still be revoked.
	StatusAuthenticated
	// StatusUnauthenticated means there is no session.
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Observer is notified whenever the status or current user changes. The
// user pointer is a copy; observers may keep it.
type Observer func(Status, *identity.User)

const (
	opSignup  = "signup"
	opLogin   = "login"
	opVerify  = "verify"
	opResend  = "resend"
	opProfile = "profile"
	opPhone   = "phone_verification"
)

// Controller is the auth orchestrator for a single device.
type Controller struct {
	deviceID string
	store    session.Store
	api      backend.Client
	bridge   *otp.Bridge
	recorder *audit.Recorder
	logger   *slog.Logger

	mu        sync.Mutex
	status    Status
	current   *identity.User
	access    string
	refresh   string
	inFlight  map[string]bool
	observers map[int]Observer
	nextObs   int

	bootOnce sync.Once
}

// NewController builds a controller around its collaborators. The bridge is
// an explicitly owned instance, never shared across devices, so teardown
// ordering stays local and testable.
func NewController(deviceID string, store session.Store, api backend.Client, bridge *otp.Bridge, recorder *audit.Recorder, logger *slog.Logger) *Controller {
	return &Controller{
		deviceID:  deviceID,
		store:     store,
		api:       api,
		bridge:    bridge,
		recorder:  recorder,
		logger:    logger.With("device", deviceID),
		status:    StatusUnknown,
		inFlight:  make(map[string]bool),
		observers: make(map[int]Observer),
	}
}

// Bootstrap restores the persisted session, optimistically trusting the
// cached user and then revalidating against the backend. Any failure wipes
// the store and lands on unauthenticated; Bootstrap itself never fails and
// always leaves the status resolved. Subsequent calls are no-ops.
func (c *Controller) Bootstrap(ctx context.Context) {
	c.bootOnce.Do(func() { c.bootstrap(ctx) })
}

func (c *Controller) bootstrap(ctx context.Context) {
	stored, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("session load failed", "error", err)
	}
	if err != nil || !stored.Complete() {
		// A partial session is wiped so the three keys stay in lockstep.
		if err == nil && (stored.AccessToken != "" || stored.RefreshToken != "" || stored.User.Phone != "") {
			c.clearStore(ctx)
		}
		c.setUnauthenticated()
		return
	}

	// Trust the cache immediately so the storefront renders logged-in
	// state without waiting on the network, then fix up asynchronously.
	user := stored.User
	c.mu.Lock()
	c.status = StatusAuthenticated
	c.current = &user
	c.access = stored.AccessToken
	c.refresh = stored.RefreshToken
	c.mu.Unlock()
	c.notify()

	if tokenExpired(stored.AccessToken, time.Now()) {
		c.logger.Info("stored credential expired, skipping revalidation")
		c.recorder.Record(ctx, audit.KindRevalidationFailed, c.deviceID, stored.User.Phone, "credential expired")
		c.invalidate(ctx)
		return
	}

	fresh, err := c.api.CurrentUser(ctx, stored.AccessToken)
	if err != nil {
		c.logger.Info("session revalidation failed", "error", err)
		c.recorder.Record(ctx, audit.KindRevalidationFailed, c.deviceID, stored.User.Phone, "")
		c.invalidate(ctx)
		return
	}

	if err := c.store.Save(ctx, session.Session{AccessToken: stored.AccessToken, RefreshToken: stored.RefreshToken, User: fresh}); err != nil {
		c.logger.Warn("session re-persist failed", "error", err)
	}
	c.mu.Lock()
	c.current = &fresh
	c.mu.Unlock()
	c.notify()
}

// Signup registers an account. It establishes no session; the caller logs
// in afterwards.
func (c *Controller) Signup(ctx context.Context, data identity.SignupData) error {
	if err := identity.ValidateSignup(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := c.begin(opSignup); err != nil {
		return err
	}
	defer c.end(opSignup)

	if err := c.api.Register(ctx, data); err != nil {
		c.logger.Warn("registration rejected", "error", err)
		return err
	}
	c.recorder.Record(ctx, audit.KindSignupAccepted, c.deviceID, data.Phone, "")
	return nil
}

// Login is the dual-path entry point. Without a password it only triggers
// OTP dispatch for the customer path: success means "a code is on its way",
// not "logged in", and no session state is touched until VerifyOTP. With a
// password it performs the admin credential login and establishes the
// session synchronously.
func (c *Controller) Login(ctx context.Context, phone, password string) error {
	if !identity.ValidPhone(phone) {
		return fmt.Errorf("%w: malformed phone number", ErrInvalidInput)
	}
	if err := c.begin(opLogin); err != nil {
		return err
	}
	defer c.end(opLogin)

	if password == "" {
		if err := c.api.RequestOTP(ctx, phone); err != nil {
			c.logger.Warn("otp dispatch failed", "error", err)
			return err
		}
		c.recorder.Record(ctx, audit.KindOTPRequested, c.deviceID, phone, "")
		return nil
	}

	grant, err := c.api.AdminLogin(ctx, phone, password)
	if err != nil {
		c.logger.Warn("admin login rejected", "error", err)
		c.recorder.Record(ctx, audit.KindLoginFailed, c.deviceID, phone, "admin")
		return err
	}
	if err := c.establish(ctx, grant); err != nil {
		return err
	}
	c.recorder.Record(ctx, audit.KindLoginSucceeded, c.deviceID, phone, "admin")
	return nil
}

// VerifyOTP finalizes the customer login. On success the session is
// persisted and the current user set; on failure nothing changes.
func (c *Controller) VerifyOTP(ctx context.Context, phone, code string) error {
	if !identity.ValidPhone(phone) || code == "" {
		return fmt.Errorf("%w: phone and code are required", ErrInvalidInput)
	}
	if err := c.begin(opVerify); err != nil {
		return err
	}
	defer c.end(opVerify)

	grant, err := c.api.VerifyOTP(ctx, phone, code)
	if err != nil {
		c.logger.Warn("otp verification rejected", "error", err)
		c.recorder.Record(ctx, audit.KindLoginFailed, c.deviceID, phone, "otp")
		return err
	}
	if err := c.establish(ctx, grant); err != nil {
		return err
	}
	c.recorder.Record(ctx, audit.KindLoginSucceeded, c.deviceID, phone, "otp")
	return nil
}

// ResendOTP re-triggers dispatch. Pure passthrough, no local state change.
func (c *Controller) ResendOTP(ctx context.Context, phone string) error {
	if !identity.ValidPhone(phone) {
		return fmt.Errorf("%w: malformed phone number", ErrInvalidInput)
	}
	if err := c.begin(opResend); err != nil {
		return err
	}
	defer c.end(opResend)

	if err := c.api.ResendOTP(ctx, phone); err != nil {
		return err
	}
	c.recorder.Record(ctx, audit.KindOTPResent, c.deviceID, phone, "")
	return nil
}

// UpdateProfile applies a partial change and replaces the cached user with
// the merged record from the backend.
func (c *Controller) UpdateProfile(ctx context.Context, update identity.ProfileUpdate) error {
	if err := identity.ValidateProfileUpdate(update); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	c.mu.Lock()
	access, refresh := c.access, c.refresh
	authenticated := c.status == StatusAuthenticated
	c.mu.Unlock()
	if !authenticated || access == "" {
		return ErrNotAuthenticated
	}

	if err := c.begin(opProfile); err != nil {
		return err
	}
	defer c.end(opProfile)

	fresh, err := c.api.UpdateProfile(ctx, access, update)
	if err != nil {
		c.logger.Warn("profile update rejected", "error", err)
		return err
	}

	if err := c.store.Save(ctx, session.Session{AccessToken: access, RefreshToken: refresh, User: fresh}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.mu.Lock()
	c.current = &fresh
	c.mu.Unlock()
	c.notify()
	return nil
}

// Logout clears the session locally. No network call is made; the backend
// credential simply dies of old age.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	phone := ""
	if c.current != nil {
		phone = c.current.Phone
	}
	c.mu.Unlock()

	c.clearStore(ctx)
	c.setUnauthenticated()
	c.bridge.Teardown()
	c.recorder.Record(ctx, audit.KindLogout, c.deviceID, phone, "")
}

// StartVerification begins proving ownership of the phone for the signup
// path, dispatching a code through the provider bridge.
func (c *Controller) StartVerification(ctx context.Context, phone string) error {
	if err := c.begin(opPhone); err != nil {
		return err
	}
	defer c.end(opPhone)

	if err := c.bridge.StartVerification(ctx, phone); err != nil {
		return err
	}
	c.recorder.Record(ctx, audit.KindVerificationStarted, c.deviceID, phone, "")
	return nil
}

// ConfirmVerification submits the code for the pending verification and
// returns the provider's identity token. Failures that invalidate the
// challenge tear the bridge down so the next attempt starts clean.
func (c *Controller) ConfirmVerification(ctx context.Context, code string) (string, error) {
	if err := c.begin(opPhone); err != nil {
		return "", err
	}
	defer c.end(opPhone)

	token, err := c.bridge.ConfirmCode(ctx, code)
	if err != nil {
		if otp.Invalidating(err) {
			c.bridge.Teardown()
		}
		return "", err
	}
	return token, nil
}

// CancelVerification abandons the attempt and releases provider resources.
func (c *Controller) CancelVerification() {
	c.bridge.Teardown()
}

// NewVerificationFlow builds the code-entry state machine for this device's
// verification attempt, wired to the bridge for confirmation and resend.
func (c *Controller) NewVerificationFlow(phone string, cfg verifyflow.Config) *verifyflow.Flow {
	cfg.Resend = func(ctx context.Context) error {
		return c.bridge.StartVerification(ctx, phone)
	}
	if cfg.ErrorText == nil {
		cfg.ErrorText = otp.UserMessage
	}
	return verifyflow.New(c.bridge, cfg)
}

// CurrentUser returns the status and a copy of the current user, nil when
// there is none.
func (c *Controller) CurrentUser() (Status, *identity.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return c.status, nil
	}
	user := *c.current
	return c.status, &user
}

// AccessToken returns the live access credential, empty when logged out.
func (c *Controller) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

// Subscribe registers an observer and returns its cancel function. The
// observer is immediately called with the current state.
func (c *Controller) Subscribe(observer Observer) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = observer
	status := c.status
	var user *identity.User
	if c.current != nil {
		u := *c.current
		user = &u
	}
	c.mu.Unlock()

	observer(status, user)
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// establish persists the grant and only then mutates in-memory state, so a
// failed write leaves the previous session fully intact.
func (c *Controller) establish(ctx context.Context, grant backend.Grant) error {
	s := session.Session{AccessToken: grant.Access, RefreshToken: grant.Refresh, User: grant.User}
	if !s.Complete() {
		return ErrBadGrant
	}
	if err := c.store.Save(ctx, s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	user := grant.User
	c.mu.Lock()
	c.status = StatusAuthenticated
	c.current = &user
	c.access = grant.Access
	c.refresh = grant.Refresh
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Controller) invalidate(ctx context.Context) {
	c.clearStore(ctx)
	c.setUnauthenticated()
}

func (c *Controller) clearStore(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("session clear failed", "error", err)
	}
}

func (c *Controller) setUnauthenticated() {
	c.mu.Lock()
	c.status = StatusUnauthenticated
	c.current = nil
	c.access = ""
	c.refresh = ""
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	status := c.status
	var user *identity.User
	if c.current != nil {
		u := *c.current
		user = &u
	}
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o(status, user)
	}
}

// begin marks op as in flight; a second invocation while the first is still
// running is rejected rather than duplicated.
func (c *Controller) begin(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[op] {
		return ErrOperationInFlight
	}
	c.inFlight[op] = true
	return nil
}

func (c *Controller) end(op string) {
	c.mu.Lock()
	delete(c.inFlight, op)
	c.mu.Unlock()
}
