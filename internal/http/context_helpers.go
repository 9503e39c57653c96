package httpx

import (
	"context"
	"errors"

	"github.com/scolay/storefront/internal/service"
)

// ErrNoAuthContext is returned when a handler that consumes auth state runs
// without the auth context middleware in front of it.
var ErrNoAuthContext = errors.New("auth context not attached to request; handler must run behind AttachAuthContext")

// authContextKey and browserIDKey are unexported context key types to avoid collisions.
type (
	authContextKey struct{}
	browserIDKey   struct{}
	requestLogKey  struct{}
)

// requestLog collects attributes resolved by inner middleware for the access log.
type requestLog struct {
	browserID string
}

// WithAuthContext returns a child context carrying the browser's AuthContext.
func WithAuthContext(ctx context.Context, ac *service.AuthContext) context.Context {
	if ac == nil {
		return ctx
	}
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthContextFrom returns the AuthContext attached to ctx, or ErrNoAuthContext.
func AuthContextFrom(ctx context.Context) (*service.AuthContext, error) {
	ac, ok := ctx.Value(authContextKey{}).(*service.AuthContext)
	if !ok || ac == nil {
		return nil, ErrNoAuthContext
	}
	return ac, nil
}

// AuthStateFrom returns a snapshot of the attached AuthContext. Without one it
// reports a signed-out, non-loading state.
func AuthStateFrom(ctx context.Context) service.AuthState {
	ac, err := AuthContextFrom(ctx)
	if err != nil {
		return service.AuthState{}
	}
	return ac.Snapshot()
}

// WithBrowserID returns a child context carrying the browser id.
func WithBrowserID(ctx context.Context, id string) context.Context {
	if rl, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		rl.browserID = id
	}
	return context.WithValue(ctx, browserIDKey{}, id)
}

// BrowserIDFrom returns the browser id set by the BrowserID middleware.
func BrowserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(browserIDKey{}).(string)
	return id, ok && id != ""
}
