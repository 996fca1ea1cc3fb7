// Package session owns the process-wide authenticated identity. It is the
// single source of truth for authentication: every mutation funnels
// through Initialize, Login, Signup, Logout and the forced-logout path
// driven by the API client's authorization interceptor.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/renalscan/renalscan-go/internal/apiclient"
	"github.com/renalscan/renalscan-go/internal/logging"
	"github.com/renalscan/renalscan-go/internal/notification"
	"github.com/renalscan/renalscan-go/internal/observability"
)

// State tracks the store's lifecycle. Exactly one of loading,
// resolved-authenticated and resolved-anonymous holds at any time;
// consumers must not branch on the identity while loading.
type State int

const (
	// StateUninitialized means Initialize has not run yet.
	StateUninitialized State = iota
	// StateLoading means the initial identity check is in flight.
	StateLoading
	// StateResolved means the identity question has been answered.
	StateResolved
)

// Snapshot is the read-only view the route guards consume.
type Snapshot struct {
	Identity        *apiclient.User
	IsLoading       bool
	IsAuthenticated bool
}

// Result is the discriminated outcome of Login and Signup. No error is
// thrown across the store boundary; callers branch on Success.
type Result struct {
	Success bool
	Error   string // user-displayable, empty on success
}

// Notifier is the subset of the notification center the store uses.
type Notifier interface {
	SendToast(message string, tt notification.ToastType, component string) error
}

// Store holds the current authenticated identity, or none.
type Store struct {
	mu       sync.RWMutex
	identity *apiclient.User
	state    State

	client   *apiclient.Client
	notifier Notifier
	metrics  *observability.Metrics
	log      *slog.Logger

	initOnce sync.Once
}

// NewStore creates the session store. notifier and metrics may be nil.
func NewStore(client *apiclient.Client, notifier Notifier, metrics *observability.Metrics) *Store {
	return &Store{
		client:   client,
		notifier: notifier,
		metrics:  metrics,
		log:      logging.ForService("session"),
	}
}

// Initialize performs the one-time "who am I" check against the
// authentication collaborator. A failure is never fatal: it runs the same
// cleanup as Logout and resolves to the anonymous state so the app still
// renders logged out. Subsequent calls are no-ops.
func (s *Store) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		s.mu.Lock()
		s.state = StateLoading
		s.mu.Unlock()

		res := s.client.CurrentUser(ctx)
		if res.OK() {
			s.mu.Lock()
			s.identity = res.Data
			s.state = StateResolved
			s.mu.Unlock()
			s.log.Info("session restored", "email", res.Data.Email)
			s.event("restored")
			return
		}

		s.log.Info("no existing session", "reason", res.Error)
		s.clearLocal()
		s.bestEffortRemoteLogout(ctx)
		s.mu.Lock()
		s.state = StateResolved
		s.mu.Unlock()
	})
}

// Login submits the credential pair. On success the identity is set from
// the response; on failure the identity is left untouched and the result
// carries a user-displayable message.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	res := s.client.Login(ctx, email, password)
	if !res.OK() {
		s.toast(res.Error, notification.ToastTypeError)
		return Result{Error: res.Error}
	}

	s.mu.Lock()
	s.identity = res.Data
	s.state = StateResolved
	s.mu.Unlock()

	s.toast("Logged in successfully!", notification.ToastTypeSuccess)
	s.event("login")
	return Result{Success: true}
}

// Signup registers a new account; the contract is identical to Login.
func (s *Store) Signup(ctx context.Context, req *apiclient.SignupRequest) Result {
	res := s.client.Signup(ctx, req)
	if !res.OK() {
		s.toast(res.Error, notification.ToastTypeError)
		return Result{Error: res.Error}
	}

	s.mu.Lock()
	s.identity = res.Data
	s.state = StateResolved
	s.mu.Unlock()

	s.toast("Account created successfully!", notification.ToastTypeSuccess)
	s.event("signup")
	return Result{Success: true}
}

// UpdateProfile mutates the identity's name and email through the
// collaborator and refreshes the local identity on success.
func (s *Store) UpdateProfile(ctx context.Context, name, email string) Result {
	res := s.client.UpdateProfile(ctx, name, email)
	if !res.OK() {
		s.toast(res.Error, notification.ToastTypeError)
		return Result{Error: res.Error}
	}
	s.mu.Lock()
	s.identity = res.Data
	s.mu.Unlock()
	s.toast("Profile updated", notification.ToastTypeSuccess)
	return Result{Success: true}
}

// UpdatePassword rotates the account credential through the collaborator.
// The identity is unchanged; the remote keeps the session alive.
func (s *Store) UpdatePassword(ctx context.Context, current, password, confirm string) Result {
	res := s.client.UpdatePassword(ctx, current, password, confirm)
	if !res.OK() {
		s.toast(res.Error, notification.ToastTypeError)
		return Result{Error: res.Error}
	}
	s.toast("Password updated", notification.ToastTypeSuccess)
	return Result{Success: true}
}

// ResetPassword completes a password reset with the emailed token. It is
// an anonymous operation; no identity change happens on success.
func (s *Store) ResetPassword(ctx context.Context, token, password, confirm string) Result {
	res := s.client.ResetPassword(ctx, token, password, confirm)
	if !res.OK() {
		s.toast(res.Error, notification.ToastTypeError)
		return Result{Error: res.Error}
	}
	s.toast("Password reset successfully", notification.ToastTypeSuccess)
	return Result{Success: true}
}

// Logout notifies the collaborator best-effort, then unconditionally
// clears the identity and the locally cached credential. A remote failure
// is logged, never surfaced, and never blocks the local cleanup.
func (s *Store) Logout(ctx context.Context) {
	s.bestEffortRemoteLogout(ctx)
	s.clearLocal()
	s.event("logout")
}

// ForceLogout is the interceptor-driven path: a stale session discovered
// mid-session clears local state without a remote round trip (the remote
// already rejected us).
func (s *Store) ForceLogout() {
	s.log.Warn("session invalidated by collaborator, clearing identity")
	s.clearLocal()
	s.event("forced_logout")
}

// IsAuthenticated is a pure function of the identity.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// Identity returns the current identity, or nil when anonymous.
func (s *Store) Identity() *apiclient.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Snapshot returns the consistent view the route guards evaluate.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Identity:        s.identity,
		IsLoading:       s.state != StateResolved,
		IsAuthenticated: s.identity != nil,
	}
}

func (s *Store) bestEffortRemoteLogout(ctx context.Context) {
	if res := s.client.Logout(ctx); !res.OK() {
		s.log.Warn("remote logout failed, clearing local session anyway",
			"error", res.Error)
	}
}

func (s *Store) clearLocal() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()
	s.client.ClearCredentials()
}

func (s *Store) toast(message string, tt notification.ToastType) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendToast(message, tt, "session"); err != nil {
		s.log.Warn("sending toast", "error", err)
	}
}

func (s *Store) event(name string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionEvents.WithLabelValues(name).Inc()
}
