// Package verifyflow drives one phone-verification attempt: collecting the
// code digit by digit, submitting it exactly once at a time, and pacing
// resends with a cooldown. The flow is the UI-facing state machine; the
// actual code exchange is delegated to a Confirmer.
package verifyflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// State is the phase of the verification attempt.
type State int

const (
	// StateCollecting accepts digit entry.
	StateCollecting State = iota
	// StateSubmitting has a confirmation in flight.
	StateSubmitting
	// StateSucceeded is terminal; the completion callback has fired or is
	// about to after the confirmation delay.
	StateSucceeded
)

// ErrIncompleteCode rejects submission before all digit slots are filled.
// No confirmation call is made in that case.
var ErrIncompleteCode = errors.New("please enter complete code")

// ErrCooldownActive rejects a resend while the countdown is above zero.
var ErrCooldownActive = errors.New("resend cooldown active")

// ErrInvalidDigit rejects non-numeric input into a code slot.
var ErrInvalidDigit = errors.New("code slots accept single digits only")

// Confirmer exchanges a complete code for an identity token.
type Confirmer interface {
	ConfirmCode(ctx context.Context, code string) (string, error)
}

// Config tunes one flow instance. Zero values fall back to production
// defaults; tests shrink Tick and ConfirmDelay so nothing sleeps.
type Config struct {
	// CodeLength is the number of digit slots. Default 6.
	CodeLength int
	// CooldownSeconds is the resend countdown start value. Default 30.
	CooldownSeconds int
	// Tick is the countdown decrement interval. Default one second.
	Tick time.Duration
	// ConfirmDelay is the pause between success and the completion
	// callback. Purely presentational. Default 400ms; negative disables.
	ConfirmDelay time.Duration
	// OnSuccess receives the identity token when confirmation succeeds.
	OnSuccess func(identityToken string)
	// Resend dispatches a fresh code. The cooldown restarts before this is
	// called, so pacing is optimistic on request rather than on delivery.
	Resend func(ctx context.Context) error
	// ErrorText maps a confirmation error to the inline message shown to
	// the shopper. Defaults to err.Error().
	ErrorText func(err error) string
}

// Flow is one live verification attempt. All methods are safe for
// concurrent use; submissions are strictly sequential.
type Flow struct {
	cfg       Config
	confirmer Confirmer

	mu        sync.Mutex
	digits    []string
	focus     int
	state     State
	message   string
	remaining int
	inFlight  bool

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// New starts a flow with the countdown already running, matching the UI
// which begins its cooldown the moment the code screen appears.
func New(confirmer Confirmer, cfg Config) *Flow {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.CooldownSeconds <= 0 {
		cfg.CooldownSeconds = 30
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.ConfirmDelay < 0 {
		cfg.ConfirmDelay = 0
	} else if cfg.ConfirmDelay == 0 {
		cfg.ConfirmDelay = 400 * time.Millisecond
	}
	if cfg.ErrorText == nil {
		cfg.ErrorText = func(err error) string { return err.Error() }
	}

	f := &Flow{
		cfg:       cfg,
		confirmer: confirmer,
		digits:    make([]string, cfg.CodeLength),
		remaining: cfg.CooldownSeconds,
		ticker:    time.NewTicker(cfg.Tick),
		done:      make(chan struct{}),
	}
	go f.countdown()
	return f
}

func (f *Flow) countdown() {
	for {
		select {
		case <-f.done:
			return
		case <-f.ticker.C:
			f.mu.Lock()
			if f.remaining > 0 {
				f.remaining--
			}
			f.mu.Unlock()
		}
	}
}

// Enter places a digit into slot i, advances focus, and auto-submits when
// the final slot completes the code.
func (f *Flow) Enter(ctx context.Context, i int, digit string) error {
	f.mu.Lock()
	if i < 0 || i >= len(f.digits) {
		f.mu.Unlock()
		return ErrInvalidDigit
	}
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		f.mu.Unlock()
		return ErrInvalidDigit
	}

	f.digits[i] = digit
	if i < len(f.digits)-1 {
		f.focus = i + 1
		f.mu.Unlock()
		return nil
	}

	complete := f.completeLocked()
	f.mu.Unlock()
	if complete {
		return f.Submit(ctx)
	}
	return nil
}

// Erase clears slot i; erasing an already-empty slot moves focus back.
func (f *Flow) Erase(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.digits) {
		return
	}
	if f.digits[i] == "" {
		if i > 0 {
			f.focus = i - 1
		}
		return
	}
	f.digits[i] = ""
	f.focus = i
}

// Submit confirms the entered code. An incomplete code is rejected locally;
// a submission already in flight makes this call a no-op so the auto-submit
// on the last digit cannot race a manual click into a duplicate request.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.state == StateSucceeded || f.inFlight {
		f.mu.Unlock()
		return nil
	}
	if !f.completeLocked() {
		f.message = ErrIncompleteCode.Error()
		f.mu.Unlock()
		return ErrIncompleteCode
	}
	code := strings.Join(f.digits, "")
	f.inFlight = true
	f.state = StateSubmitting
	f.message = ""
	f.mu.Unlock()

	token, err := f.confirmer.ConfirmCode(ctx, code)

	f.mu.Lock()
	f.inFlight = false
	if err != nil {
		f.state = StateCollecting
		f.message = f.cfg.ErrorText(err)
		f.digits = make([]string, f.cfg.CodeLength)
		f.focus = 0
		f.mu.Unlock()
		return err
	}
	f.state = StateSucceeded
	f.mu.Unlock()

	if f.cfg.ConfirmDelay > 0 {
		time.Sleep(f.cfg.ConfirmDelay)
	}
	if f.cfg.OnSuccess != nil {
		f.cfg.OnSuccess(token)
	}
	return nil
}

// Resend restarts the cooldown and dispatches a fresh code. While the
// countdown is above zero no dispatch is made.
func (f *Flow) Resend(ctx context.Context) error {
	f.mu.Lock()
	if f.remaining > 0 {
		f.mu.Unlock()
		return ErrCooldownActive
	}
	if f.inFlight || f.state == StateSucceeded {
		f.mu.Unlock()
		return nil
	}
	f.remaining = f.cfg.CooldownSeconds
	f.mu.Unlock()

	if f.cfg.Resend != nil {
		return f.cfg.Resend(ctx)
	}
	return nil
}

// Close stops the countdown. Must be called when the shopper navigates
// away so the timer cannot fire against a disposed attempt.
func (f *Flow) Close() {
	f.closeOnce.Do(func() {
		f.ticker.Stop()
		close(f.done)
	})
}

// State returns the current phase.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Message returns the inline error text, empty when there is none.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Remaining returns the cooldown seconds left before resend is allowed.
func (f *Flow) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remaining
}

// Focus returns the index of the slot that should receive input next.
func (f *Flow) Focus() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focus
}

// Code returns the digits entered so far, concatenated.
func (f *Flow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.digits, "")
}

func (f *Flow) completeLocked() bool {
	for _, d := range f.digits {
		if d == "" {
			return false
		}
	}
	return true
}
