package auth

import (
	"context"
	"testing"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeAuthClient_EmitAndUnsubscribe(t *testing.T) {
	client := NewFakeAuthClient(nil)
	ctx := context.Background()

	var events []domainauth.Event
	sub := client.OnAuthStateChange(func(_ context.Context, e domainauth.Event, _ *domainauth.Session) {
		events = append(events, e)
	})
	require.Equal(t, 1, client.ListenerCount())

	_, err := client.SignInWithPassword(ctx, ports.Credentials{Email: "a@b.test", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx))
	assert.Equal(t, []domainauth.Event{domainauth.EventSignedIn, domainauth.EventSignedOut}, events)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, client.ListenerCount())
	assert.Equal(t, 1, client.Unsubscribed())
}

func TestFakeAuthClient_SetSessionRecordsPair(t *testing.T) {
	client := NewFakeAuthClient(nil)
	pair := domainauth.TokenPair{AccessToken: "a", RefreshToken: "r"}

	sess, err := client.SetSession(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, "a", sess.AccessToken)
	assert.Equal(t, []domainauth.TokenPair{pair}, client.SetSessionCalls())

	got, err := client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Same(t, sess, got)
}

func TestMemoryProfileStore(t *testing.T) {
	store := NewMemoryProfileStore(domainauth.Profile{ID: "u1", Role: domainauth.RoleAdmin})

	p, err := store.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, p.Role)

	_, err = store.GetByUserID(context.Background(), "u2")
	require.ErrorIs(t, err, ports.ErrProfileNotFound)
	assert.Equal(t, 2, store.Calls())
}

func TestMemoryStorageProvider_Isolation(t *testing.T) {
	provider := NewMemoryStorageProvider()
	ctx := context.Background()

	require.NoError(t, provider.ForBrowser("a").SetItem(ctx, "k", "v"))
	_, ok, err := provider.ForBrowser("b").GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := provider.Namespace("a").GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
