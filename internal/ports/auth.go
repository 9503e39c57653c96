package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
)

// ErrProfileNotFound is returned by a ProfileStore when no profile exists for the user.
var ErrProfileNotFound = errors.New("profile not found")

// AuthListener receives auth state notifications. The session is nil for sign-out.
type AuthListener func(ctx context.Context, event domainauth.Event, sess *domainauth.Session)

// Subscription is the handle returned by OnAuthStateChange.
type Subscription interface {
	// Unsubscribe stops delivery to the listener. It is safe to call more than once.
	Unsubscribe()
}

// AuthClient is the hosted auth provider as seen by one browser.
type AuthClient interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*domainauth.Session, error)

	// OnAuthStateChange registers listener for auth events. Listeners are invoked
	// synchronously, outside of the client's internal locks.
	OnAuthStateChange(listener AuthListener) Subscription

	// SignOut ends the session on the provider and clears local storage.
	SignOut(ctx context.Context) error

	// SetSession installs a session from an access/refresh token pair.
	SetSession(ctx context.Context, pair domainauth.TokenPair) (*domainauth.Session, error)

	SignInWithPassword(ctx context.Context, creds Credentials) (*domainauth.Session, error)
	SignUp(ctx context.Context, creds Credentials) (*domainauth.Session, error)
}

// Credentials carries email/password input for sign-in and sign-up.
type Credentials struct {
	Email    string
	Password string
	FullName string
}

// AuthClientFactory builds an AuthClient bound to one browser's storage.
type AuthClientFactory interface {
	ForBrowser(storage LocalStorage) AuthClient
}

// ProfileStore reads application profiles.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*domainauth.Profile, error)
}

// LocalStorage is a per-browser key/value store. GetItem reports ok=false for a missing key.
type LocalStorage interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// LocalStorageProvider opens the storage namespace for a browser id.
type LocalStorageProvider interface {
	ForBrowser(browserID string) LocalStorage
}

// CartCounter reports the number of items in a browser's cart.
type CartCounter interface {
	ItemCount(ctx context.Context, browserID string) (int, error)
}
