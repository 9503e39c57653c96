package devauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	mockauth "github.com/scolay/storefront/internal/mocks/auth"
	"github.com/scolay/storefront/internal/ports"
)

const devUserID = "00000000-0000-4000-8000-000000000001"

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestFactory(t *testing.T) (*Factory, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f, err := NewFactory(Config{
		UserID:   devUserID,
		Email:    "dev@scolay.test",
		Password: "scolay",
		TokenTTL: time.Hour,
		Now:      clk.Now,
	})
	require.NoError(t, err)
	return f, clk
}

func events(rec *[]domainauth.Event) ports.AuthListener {
	return func(_ context.Context, e domainauth.Event, _ *domainauth.Session) {
		*rec = append(*rec, e)
	}
}

func TestNewFactory_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing user", Config{Email: "a@b.c", Password: "p"}, "UserID is required"},
		{"bad uuid", Config{UserID: "dev", Email: "a@b.c", Password: "p"}, "must be a uuid"},
		{"missing email", Config{UserID: devUserID, Password: "p"}, "Email is required"},
		{"missing password", Config{UserID: devUserID, Email: "a@b.c"}, "Password is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClient_SignInAndGetSession(t *testing.T) {
	f, _ := newTestFactory(t)
	storage := mockauth.NewMemoryStorage()
	c := f.ForBrowser(storage)
	var got []domainauth.Event
	sub := c.OnAuthStateChange(events(&got))
	defer sub.Unsubscribe()

	_, err := c.SignInWithPassword(context.Background(), ports.Credentials{Email: "dev@scolay.test", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := c.SignInWithPassword(context.Background(), ports.Credentials{Email: "DEV@scolay.test", Password: "scolay"})
	require.NoError(t, err)
	require.NotNil(t, sess.User)
	assert.Equal(t, devUserID, sess.User.ID)

	// A second client on the same storage sees the persisted session.
	again, err := f.ForBrowser(storage).GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, sess.AccessToken, again.AccessToken)

	assert.Equal(t, []domainauth.Event{domainauth.EventInitialSession, domainauth.EventSignedIn}, got)
}

func TestClient_GetSession_RefreshesExpired(t *testing.T) {
	f, clk := newTestFactory(t)
	storage := mockauth.NewMemoryStorage()
	c := f.ForBrowser(storage)
	first, err := c.SignInWithPassword(context.Background(), ports.Credentials{Email: "dev@scolay.test", Password: "scolay"})
	require.NoError(t, err)

	clk.now = clk.now.Add(2 * time.Hour)
	var got []domainauth.Event
	sub := c.OnAuthStateChange(events(&got))
	defer sub.Unsubscribe()

	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEqual(t, first.RefreshToken, sess.RefreshToken)
	assert.Equal(t, []domainauth.Event{domainauth.EventInitialSession, domainauth.EventTokenRefreshed}, got)

	// The old refresh token was rotated out.
	_, err = c.SetSession(context.Background(), domainauth.TokenPair{
		AccessToken:  first.AccessToken,
		RefreshToken: first.RefreshToken,
	})
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestClient_GetSession_ForeignTokenDropped(t *testing.T) {
	f, _ := newTestFactory(t)
	other, _ := newTestFactory(t)
	storage := mockauth.NewMemoryStorage()
	_, err := other.ForBrowser(storage).SignInWithPassword(context.Background(),
		ports.Credentials{Email: "dev@scolay.test", Password: "scolay"})
	require.NoError(t, err)

	sess, err := f.ForBrowser(storage).GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	_, ok, _ := storage.GetItem(context.Background(), "scolay-auth-token")
	assert.False(t, ok)
}

func TestClient_SetSession(t *testing.T) {
	f, _ := newTestFactory(t)
	source := f.ForBrowser(mockauth.NewMemoryStorage())
	issued, err := source.SignInWithPassword(context.Background(), ports.Credentials{Email: "dev@scolay.test", Password: "scolay"})
	require.NoError(t, err)

	target := f.ForBrowser(mockauth.NewMemoryStorage())
	var got []domainauth.Event
	sub := target.OnAuthStateChange(events(&got))
	defer sub.Unsubscribe()

	sess, err := target.SetSession(context.Background(), domainauth.TokenPair{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
	})
	require.NoError(t, err)
	assert.Equal(t, devUserID, sess.User.ID)
	assert.Equal(t, []domainauth.Event{domainauth.EventInitialSession, domainauth.EventSignedIn}, got)

	_, err = target.SetSession(context.Background(), domainauth.TokenPair{AccessToken: "junk", RefreshToken: "r"})
	require.Error(t, err)
}

func TestClient_SignUp(t *testing.T) {
	f, _ := newTestFactory(t)
	c := f.ForBrowser(mockauth.NewMemoryStorage())

	sess, err := c.SignUp(context.Background(), ports.Credentials{
		Email: "new@scolay.test", Password: "pw", FullName: "New Parent",
	})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "New Parent", sess.User.UserMetadata["full_name"])

	_, err = c.SignUp(context.Background(), ports.Credentials{Email: "new@scolay.test", Password: "pw"})
	require.ErrorIs(t, err, ErrUserExists)

	// Registered users can sign in from another browser.
	_, err = f.ForBrowser(mockauth.NewMemoryStorage()).SignInWithPassword(context.Background(),
		ports.Credentials{Email: "new@scolay.test", Password: "pw"})
	require.NoError(t, err)
}

func TestClient_SignOut(t *testing.T) {
	f, _ := newTestFactory(t)
	storage := mockauth.NewMemoryStorage()
	c := f.ForBrowser(storage)
	sess, err := c.SignInWithPassword(context.Background(), ports.Credentials{Email: "dev@scolay.test", Password: "scolay"})
	require.NoError(t, err)

	var got []domainauth.Event
	sub := c.OnAuthStateChange(events(&got))
	require.NoError(t, c.SignOut(context.Background()))
	sub.Unsubscribe()

	assert.Equal(t, []domainauth.Event{domainauth.EventInitialSession, domainauth.EventSignedOut}, got)
	current, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = f.exchange(sess.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "sign-out revokes the refresh token")
}
