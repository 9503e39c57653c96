package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/mocks"
	mockauth "github.com/scolay/storefront/internal/mocks/auth"
	"github.com/scolay/storefront/internal/ports"
)

const testStorageKey = "scolay-auth-token"

type profileStoreFunc func(ctx context.Context, userID string) (*domainauth.Profile, error)

func (f profileStoreFunc) GetByUserID(ctx context.Context, userID string) (*domainauth.Profile, error) {
	return f(ctx, userID)
}

type subscriptionFunc func()

func (f subscriptionFunc) Unsubscribe() { f() }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUser(id string) *domainauth.User {
	return &domainauth.User{ID: id, Email: id + "@scolay.test"}
}

// assertStateInvariant checks profile ⇒ user ⇒ session.
func assertStateInvariant(t *testing.T, s AuthState) {
	t.Helper()
	if s.Profile != nil {
		assert.NotNil(t, s.User, "profile without user")
	}
	if s.User != nil {
		assert.NotNil(t, s.Session, "user without session")
	}
}

func waitReady(t *testing.T, a *AuthContext) {
	t.Helper()
	select {
	case <-a.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("auth context did not become ready")
	}
}

func newTestAuthContext(client ports.AuthClient, profiles ports.ProfileStore, storage ports.LocalStorage) *AuthContext {
	return NewAuthContext(AuthContextOptions{
		Client:   client,
		Profiles: profiles,
		Token:    TokenStorage{Storage: storage, Key: testStorageKey},
		Logger:   discardLogger(),
	})
}

func TestAuthContext_InitialState(t *testing.T) {
	a := newTestAuthContext(mockauth.NewFakeAuthClient(nil), mockauth.NewMemoryProfileStore(), nil)

	s := a.Snapshot()
	assert.True(t, s.Loading)
	assert.True(t, a.Loading())
	assert.Nil(t, s.Session)
	assert.Nil(t, s.User)
	assert.Nil(t, s.Profile)

	select {
	case <-a.Ready():
		t.Fatal("ready before start")
	default:
	}
}

func TestAuthContext_Start_NoSessionNoToken(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), mockauth.NewMemoryStorage())

	a.Start(context.Background())
	waitReady(t, a)

	s := a.Snapshot()
	assert.Equal(t, AuthState{Loading: false}, s)
	assert.False(t, s.SignedIn())
	assert.Equal(t, domainauth.RoleNone, s.Role())
	assert.Equal(t, 1, client.ListenerCount())
}

func TestAuthContext_Start_WithSessionFetchesProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	profiles := mocks.NewMockProfileStore(ctrl)

	user := testUser("u-1")
	sess := mockauth.SessionFor(user)
	profile := &domainauth.Profile{ID: "u-1", Role: domainauth.RoleAdmin}

	gomock.InOrder(
		client.EXPECT().OnAuthStateChange(gomock.Any()).Return(subscriptionFunc(func() {})),
		client.EXPECT().GetSession(gomock.Any()).Return(sess, nil),
		profiles.EXPECT().GetByUserID(gomock.Any(), "u-1").Return(profile, nil),
	)

	a := newTestAuthContext(client, profiles, nil)
	a.Start(context.Background())
	waitReady(t, a)

	s := a.Snapshot()
	assert.False(t, s.Loading)
	assert.Same(t, sess, s.Session)
	assert.Same(t, user, s.User)
	assert.Equal(t, profile, s.Profile)
	assert.Equal(t, domainauth.RoleAdmin, s.Role())
	assertStateInvariant(t, s)
}

func TestAuthContext_Start_ProfileFetchFailureLeavesProfileNil(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	profiles := mocks.NewMockProfileStore(ctrl)

	sess := mockauth.SessionFor(testUser("u-1"))
	client.EXPECT().OnAuthStateChange(gomock.Any()).Return(subscriptionFunc(func() {}))
	client.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	profiles.EXPECT().GetByUserID(gomock.Any(), "u-1").Return(nil, errors.New("db down"))

	a := newTestAuthContext(client, profiles, nil)
	a.Start(context.Background())
	waitReady(t, a)

	s := a.Snapshot()
	assert.False(t, s.Loading)
	assert.NotNil(t, s.Session)
	assert.Nil(t, s.Profile)
	assertStateInvariant(t, s)
}

func TestAuthContext_Start_GetSessionErrorClearsState(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	client.GetSessionFunc = func(context.Context) (*domainauth.Session, error) {
		return nil, errors.New("network")
	}
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), nil)

	a.Start(context.Background())
	waitReady(t, a)

	assert.Equal(t, AuthState{}, a.Snapshot())
}

func TestAuthContext_Start_WarnsWhenTokenPersistedWithoutSession(t *testing.T) {
	var buf bytes.Buffer
	storage := mockauth.NewMemoryStorage()
	require.NoError(t, storage.SetItem(context.Background(), testStorageKey, `{"access_token":"a","refresh_token":"r"}`))

	client := mockauth.NewFakeAuthClient(nil)
	a := NewAuthContext(AuthContextOptions{
		Client:   client,
		Profiles: mockauth.NewMemoryProfileStore(),
		Token:    TokenStorage{Storage: storage, Key: testStorageKey},
		Logger:   slog.New(slog.NewTextHandler(&buf, nil)),
	})

	a.Start(context.Background())
	waitReady(t, a)

	assert.Equal(t, AuthState{}, a.Snapshot())
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "persisted token exists")
	// No recovery happens during initialization.
	assert.Empty(t, client.SetSessionCalls())
}

func TestAuthContext_Start_OnlyOnce(t *testing.T) {
	calls := 0
	client := mockauth.NewFakeAuthClient(nil)
	client.GetSessionFunc = func(context.Context) (*domainauth.Session, error) {
		calls++
		return nil, nil
	}
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), nil)

	a.Start(context.Background())
	a.Start(context.Background())

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, client.ListenerCount())
}

func TestAuthContext_EventWithSessionFetchesProfile(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	user := testUser("u-2")
	profiles := mockauth.NewMemoryProfileStore(domainauth.Profile{ID: "u-2", Role: domainauth.RoleSupplierAdmin})
	a := newTestAuthContext(client, profiles, nil)
	a.Start(context.Background())
	waitReady(t, a)

	client.Emit(context.Background(), domainauth.EventSignedIn, mockauth.SessionFor(user))

	s := a.Snapshot()
	assert.Equal(t, "u-2", s.User.ID)
	require.NotNil(t, s.Profile)
	assert.Equal(t, domainauth.RoleSupplierAdmin, s.Role())
	assert.False(t, s.Loading)
	assertStateInvariant(t, s)
}

func TestAuthContext_EventWithNilSessionClearsProfile(t *testing.T) {
	user := testUser("u-3")
	client := mockauth.NewFakeAuthClient(mockauth.SessionFor(user))
	profiles := mockauth.NewMemoryProfileStore(domainauth.Profile{ID: "u-3", Role: domainauth.RoleAdmin})
	a := newTestAuthContext(client, profiles, nil)
	a.Start(context.Background())
	waitReady(t, a)
	require.NotNil(t, a.Snapshot().Profile)

	client.Emit(context.Background(), domainauth.EventSignedOut, nil)

	assert.Equal(t, AuthState{}, a.Snapshot())
}

func TestAuthContext_EventProfileFailureClearsPreviousProfile(t *testing.T) {
	user := testUser("u-4")
	client := mockauth.NewFakeAuthClient(mockauth.SessionFor(user))
	profiles := mockauth.NewMemoryProfileStore(domainauth.Profile{ID: "u-4", Role: domainauth.RoleAdmin})
	a := newTestAuthContext(client, profiles, nil)
	a.Start(context.Background())
	waitReady(t, a)
	require.NotNil(t, a.Snapshot().Profile)

	profiles.Err = errors.New("timeout")
	client.Emit(context.Background(), domainauth.EventTokenRefreshed, mockauth.SessionFor(user))

	s := a.Snapshot()
	assert.NotNil(t, s.Session)
	assert.Nil(t, s.Profile)
}

func TestAuthContext_LoadingNeverReverts(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), nil)
	a.Start(context.Background())
	waitReady(t, a)

	client.Emit(context.Background(), domainauth.EventSignedIn, mockauth.SessionFor(testUser("u-5")))
	assert.False(t, a.Loading())
	client.Emit(context.Background(), domainauth.EventSignedOut, nil)
	assert.False(t, a.Loading())
}

func TestAuthContext_InitialResolutionAfterEarlyEventWins(t *testing.T) {
	// The initial fetch and an early event race; the last write wins.
	client := mockauth.NewFakeAuthClient(nil)
	user := testUser("u-6")
	client.GetSessionFunc = func(ctx context.Context) (*domainauth.Session, error) {
		client.Emit(ctx, domainauth.EventSignedIn, mockauth.SessionFor(user))
		return nil, nil
	}
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), nil)

	a.Start(context.Background())
	waitReady(t, a)

	assert.Equal(t, AuthState{}, a.Snapshot())
}

func TestAuthContext_StaleProfileNotAppliedToNewUser(t *testing.T) {
	client := mockauth.NewFakeAuthClient(mockauth.SessionFor(testUser("old")))
	userNew := testUser("new")

	var profiles profileStoreFunc
	profiles = func(ctx context.Context, id string) (*domainauth.Profile, error) {
		if id == "old" {
			// A different user signs in while the first lookup is in flight.
			client.Emit(ctx, domainauth.EventSignedIn, mockauth.SessionFor(userNew))
			return &domainauth.Profile{ID: "old", Role: domainauth.RoleAdmin}, nil
		}
		return &domainauth.Profile{ID: id, Role: domainauth.RoleSchoolAdmin}, nil
	}
	a := newTestAuthContext(client, profiles, nil)

	a.Start(context.Background())
	waitReady(t, a)

	s := a.Snapshot()
	require.NotNil(t, s.Profile)
	assert.Equal(t, "new", s.User.ID)
	assert.Equal(t, "new", s.Profile.ID)
	assert.Equal(t, domainauth.RoleSchoolAdmin, s.Role())
}

func TestAuthContext_VisibilityRecoversFromPersistedToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	storage := mocks.NewMockLocalStorage(ctrl)

	client.EXPECT().OnAuthStateChange(gomock.Any()).Return(subscriptionFunc(func() {}))
	client.EXPECT().GetSession(gomock.Any()).Return(nil, nil)
	storage.EXPECT().GetItem(gomock.Any(), testStorageKey).Return("", false, nil)

	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), storage)
	a.Start(context.Background())
	waitReady(t, a)

	storage.EXPECT().GetItem(gomock.Any(), testStorageKey).
		Return(`{"access_token":"acc","refresh_token":"ref","expires_at":1}`, true, nil)
	client.EXPECT().SetSession(gomock.Any(), domainauth.TokenPair{AccessToken: "acc", RefreshToken: "ref"}).
		Return(mockauth.SessionFor(testUser("u-7")), nil)

	a.HandleVisibilityChange(context.Background(), true)

	// State is not set directly by recovery; it arrives via events.
	assert.Nil(t, a.Snapshot().Session)
}

func TestAuthContext_VisibilityRecoveryUpdatesStateViaEvent(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	storage := mockauth.NewMemoryStorage()
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), storage)
	a.Start(context.Background())
	waitReady(t, a)

	require.NoError(t, storage.SetItem(context.Background(), testStorageKey, `{"access_token":"a","refresh_token":"r"}`))
	a.HandleVisibilityChange(context.Background(), true)

	s := a.Snapshot()
	require.NotNil(t, s.Session)
	assert.Equal(t, "a", s.Session.AccessToken)
	assertStateInvariant(t, s)
}

func TestAuthContext_VisibilityNoop(t *testing.T) {
	tests := []struct {
		name    string
		session *domainauth.Session
		token   string
		visible bool
	}{
		{name: "hidden", token: `{"access_token":"a","refresh_token":"r"}`, visible: false},
		{name: "session already held", session: mockauth.SessionFor(testUser("u")), token: `{"access_token":"a","refresh_token":"r"}`, visible: true},
		{name: "no token", visible: true},
		{name: "malformed token", token: `{not json`, visible: true},
		{name: "missing refresh token", token: `{"access_token":"a"}`, visible: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mockauth.NewFakeAuthClient(tt.session)
			storage := mockauth.NewMemoryStorage()
			if tt.token != "" {
				require.NoError(t, storage.SetItem(context.Background(), testStorageKey, tt.token))
			}
			a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), storage)
			a.Start(context.Background())
			waitReady(t, a)

			a.HandleVisibilityChange(context.Background(), tt.visible)

			assert.Empty(t, client.SetSessionCalls())
		})
	}
}

func TestAuthContext_VisibilityRecoveryErrorIsSwallowed(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	client.SetSessionFunc = func(context.Context, domainauth.TokenPair) (*domainauth.Session, error) {
		return nil, errors.New("refresh token revoked")
	}
	storage := mockauth.NewMemoryStorage()
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), storage)
	a.Start(context.Background())
	waitReady(t, a)
	require.NoError(t, storage.SetItem(context.Background(), testStorageKey, `{"access_token":"a","refresh_token":"r"}`))

	a.HandleVisibilityChange(context.Background(), true)

	assert.Len(t, client.SetSessionCalls(), 1)
	assert.Equal(t, AuthState{}, a.Snapshot())
}

func TestAuthContext_SignOutClearsStateViaEvent(t *testing.T) {
	user := testUser("u-8")
	client := mockauth.NewFakeAuthClient(mockauth.SessionFor(user))
	profiles := mockauth.NewMemoryProfileStore(domainauth.Profile{ID: "u-8", Role: domainauth.RoleAdmin})
	a := newTestAuthContext(client, profiles, nil)
	a.Start(context.Background())
	waitReady(t, a)
	require.True(t, a.Snapshot().SignedIn())

	a.SignOut(context.Background())

	assert.Equal(t, 1, client.SignOutCalls())
	assert.Equal(t, AuthState{}, a.Snapshot())
}

func TestAuthContext_SignOutErrorIsLoggedNotSurfaced(t *testing.T) {
	var buf bytes.Buffer
	user := testUser("u-9")
	client := mockauth.NewFakeAuthClient(mockauth.SessionFor(user))
	client.SignOutErr = errors.New("server unavailable")
	a := NewAuthContext(AuthContextOptions{
		Client:   client,
		Profiles: mockauth.NewMemoryProfileStore(),
		Logger:   slog.New(slog.NewTextHandler(&buf, nil)),
	})
	a.Start(context.Background())
	waitReady(t, a)

	a.SignOut(context.Background())

	assert.True(t, a.Snapshot().SignedIn())
	assert.Contains(t, buf.String(), "error signing out")
}

func TestAuthContext_SignInAndSignUp(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), nil)
	a.Start(context.Background())
	waitReady(t, a)

	require.NoError(t, a.SignInWithPassword(context.Background(), ports.Credentials{Email: "x@scolay.test", Password: "pw"}))
	assert.Equal(t, "x@scolay.test", a.Snapshot().User.Email)

	issued, err := a.SignUp(context.Background(), ports.Credentials{Email: "y@scolay.test", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, issued)

	client.SignInFunc = func(context.Context, ports.Credentials) (*domainauth.Session, error) {
		return nil, errors.New("invalid login credentials")
	}
	err = a.SignInWithPassword(context.Background(), ports.Credentials{Email: "x@scolay.test"})
	require.ErrorContains(t, err, "invalid login credentials")
}

func TestAuthContext_CloseUnsubscribesAndDropsWrites(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), nil)
	a.Start(context.Background())
	waitReady(t, a)

	a.Close()
	a.Close()

	assert.Equal(t, 0, client.ListenerCount())
	assert.Equal(t, 1, client.Unsubscribed())

	// A late write through a retained listener reference must not land.
	a.handleAuthEvent(context.Background(), domainauth.EventSignedIn, mockauth.SessionFor(testUser("late")))
	assert.Equal(t, AuthState{}, a.Snapshot())
}

func TestAuthContext_CloseBeforeStart(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	a := newTestAuthContext(client, mockauth.NewMemoryProfileStore(), nil)

	a.Close()
	a.Start(context.Background())

	waitReady(t, a)
	assert.Equal(t, 0, client.ListenerCount())
}

func TestAuthContext_ConcurrentEventsKeepInvariant(t *testing.T) {
	client := mockauth.NewFakeAuthClient(nil)
	profiles := profileStoreFunc(func(_ context.Context, id string) (*domainauth.Profile, error) {
		return &domainauth.Profile{ID: id, Role: domainauth.RoleAdmin}, nil
	})
	a := newTestAuthContext(client, profiles, nil)
	a.Start(context.Background())
	waitReady(t, a)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				client.Emit(context.Background(), domainauth.EventSignedOut, nil)
				return
			}
			client.Emit(context.Background(), domainauth.EventSignedIn, mockauth.SessionFor(testUser("u")))
		}()
		assertStateInvariant(t, a.Snapshot())
	}
	wg.Wait()
	assertStateInvariant(t, a.Snapshot())
}
