package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/ports"
)

// AuthState is a point-in-time copy of an AuthContext.
// The pointed-to records are shared and must be treated as read-only.
type AuthState struct {
	Session *domainauth.Session
	User    *domainauth.User
	Profile *domainauth.Profile
	Loading bool
}

// Role returns the profile role, or RoleNone without a profile.
func (s AuthState) Role() domainauth.Role {
	if s.Profile == nil {
		return domainauth.RoleNone
	}
	return s.Profile.Role
}

// SignedIn reports whether a user is present.
func (s AuthState) SignedIn() bool { return s.User != nil }

// TokenStorage locates the persisted provider token for one browser.
type TokenStorage struct {
	Storage ports.LocalStorage
	Key     string
}

// AuthContextOptions groups dependencies for AuthContext.
type AuthContextOptions struct {
	Client   ports.AuthClient   // Required
	Profiles ports.ProfileStore // Required
	Token    TokenStorage       // Optional; recovery and desync warnings need it
	Logger   *slog.Logger
}

// AuthContext owns the session, user, profile and loading state for one browser.
// State changes come from the initial session check and from provider auth events.
type AuthContext struct {
	client   ports.AuthClient
	profiles ports.ProfileStore
	token    TokenStorage
	logger   *slog.Logger

	mu     sync.RWMutex
	state  AuthState
	closed bool
	sub    ports.Subscription

	startOnce sync.Once
	readyOnce sync.Once
	ready     chan struct{}
}

// NewAuthContext constructs an AuthContext in the loading state. It panics if Client or Profiles is nil.
func NewAuthContext(opts AuthContextOptions) *AuthContext {
	if opts.Client == nil {
		panic("AuthClient is required")
	}
	if opts.Profiles == nil {
		panic("ProfileStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Token.Key == "" {
		opts.Token.Key = "scolay-auth-token"
	}
	return &AuthContext{
		client:   opts.Client,
		profiles: opts.Profiles,
		token:    opts.Token,
		logger:   logger.With("component", "auth_context"),
		state:    AuthState{Loading: true},
		ready:    make(chan struct{}),
	}
}

// Start subscribes to auth events and then resolves the initial session.
// It blocks until the initial resolution completes. Only the first call has effect.
func (a *AuthContext) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		sub := a.client.OnAuthStateChange(a.handleAuthEvent)

		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			sub.Unsubscribe()
			a.markReady()
			return
		}
		a.sub = sub
		a.mu.Unlock()

		a.initialize(ctx)
	})
}

// Ready is closed once the initial session resolution has completed.
func (a *AuthContext) Ready() <-chan struct{} { return a.ready }

// Loading reports whether the initial session resolution is still in flight.
func (a *AuthContext) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Loading
}

// Snapshot returns a consistent copy of the current state.
func (a *AuthContext) Snapshot() AuthState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *AuthContext) initialize(ctx context.Context) {
	defer a.markReady()

	sess, err := a.client.GetSession(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "error getting session", "error", err)
		a.clear()
		return
	}
	if sess != nil {
		a.setSession(sess)
		if sess.User != nil {
			a.loadProfile(ctx, sess.User.ID)
		}
		return
	}

	if a.persistedTokenPresent(ctx) {
		a.logger.WarnContext(ctx,
			"no active session but a persisted token exists; token may be expired or out of sync",
			"storage_key", a.token.Key)
	}
	a.clear()
}

func (a *AuthContext) handleAuthEvent(ctx context.Context, event domainauth.Event, sess *domainauth.Session) {
	a.logger.DebugContext(ctx, "auth state changed", "event", event, "has_session", sess != nil)

	a.setSession(sess)
	if sess != nil && sess.User != nil {
		a.loadProfile(ctx, sess.User.ID)
		return
	}
	a.setProfile("", nil)
}

// HandleVisibilityChange attempts to recover a session from the persisted token
// when the page becomes visible and no session is held. The resulting state
// arrives through the auth event subscription.
func (a *AuthContext) HandleVisibilityChange(ctx context.Context, visible bool) {
	if !visible || a.token.Storage == nil {
		return
	}
	if a.Snapshot().Session != nil {
		return
	}

	raw, ok, err := a.token.Storage.GetItem(ctx, a.token.Key)
	if err != nil {
		a.logger.ErrorContext(ctx, "error reading persisted token", "error", err)
		return
	}
	if !ok || raw == "" {
		return
	}

	a.logger.InfoContext(ctx, "attempting to recover session from persisted token")
	pair, err := domainauth.ParseStoredToken(raw)
	if err != nil {
		if !errors.Is(err, domainauth.ErrIncompleteToken) {
			a.logger.ErrorContext(ctx, "error parsing persisted token during recovery", "error", err)
		}
		return
	}
	sess, err := a.client.SetSession(ctx, pair)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to recover session", "error", err)
		return
	}
	if sess != nil {
		a.logger.InfoContext(ctx, "session recovered")
	}
}

// SignOut asks the provider to end the session. State is cleared by the
// SIGNED_OUT event, not here. Errors are logged.
func (a *AuthContext) SignOut(ctx context.Context) {
	if err := a.client.SignOut(ctx); err != nil {
		a.logger.ErrorContext(ctx, "error signing out", "error", err)
	}
}

// SignInWithPassword signs in through the provider. Unlike SignOut, failures are
// returned so the login form can show them.
func (a *AuthContext) SignInWithPassword(ctx context.Context, creds ports.Credentials) error {
	if _, err := a.client.SignInWithPassword(ctx, creds); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// SignUp registers a new account. It reports whether the provider issued a
// session immediately (false means email confirmation is pending).
func (a *AuthContext) SignUp(ctx context.Context, creds ports.Credentials) (bool, error) {
	sess, err := a.client.SignUp(ctx, creds)
	if err != nil {
		return false, fmt.Errorf("sign up: %w", err)
	}
	return sess != nil, nil
}

// Close releases the auth event subscription. Later state writes are dropped.
func (a *AuthContext) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	sub := a.sub
	a.sub = nil
	a.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (a *AuthContext) persistedTokenPresent(ctx context.Context) bool {
	if a.token.Storage == nil {
		return false
	}
	raw, ok, err := a.token.Storage.GetItem(ctx, a.token.Key)
	if err != nil {
		a.logger.WarnContext(ctx, "error reading persisted token", "error", err)
		return false
	}
	return ok && raw != ""
}

func (a *AuthContext) loadProfile(ctx context.Context, userID string) {
	profile, err := a.profiles.GetByUserID(ctx, userID)
	if err != nil {
		a.logger.ErrorContext(ctx, "error fetching profile", "user_id", userID, "error", err)
		profile = nil
	}
	a.setProfile(userID, profile)
}

func (a *AuthContext) markReady() {
	a.readyOnce.Do(func() {
		a.mu.Lock()
		a.state.Loading = false
		a.mu.Unlock()
		close(a.ready)
	})
}

// setSession replaces session and user. A profile belonging to another user is dropped.
func (a *AuthContext) setSession(sess *domainauth.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.state.Session = sess
	a.state.User = nil
	if sess != nil {
		a.state.User = sess.User
	}
	if a.state.Profile != nil && (a.state.User == nil || a.state.User.ID != a.state.Profile.ID) {
		a.state.Profile = nil
	}
}

// setProfile applies a fetched profile only while forUserID is still the current user.
// An empty forUserID clears the profile unconditionally.
func (a *AuthContext) setProfile(forUserID string, profile *domainauth.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if forUserID == "" {
		a.state.Profile = nil
		return
	}
	if a.state.User == nil || a.state.User.ID != forUserID {
		a.logger.Debug("dropping profile fetched for a previous user", "user_id", forUserID)
		return
	}
	a.state.Profile = profile
}

func (a *AuthContext) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.state.Session = nil
	a.state.User = nil
	a.state.Profile = nil
}
