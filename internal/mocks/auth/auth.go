package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthClient           = (*FakeAuthClient)(nil)
	_ ports.AuthClientFactory    = (*FakeClientFactory)(nil)
	_ ports.ProfileStore         = (*MemoryProfileStore)(nil)
	_ ports.LocalStorage         = (*MemoryStorage)(nil)
	_ ports.LocalStorageProvider = (*MemoryStorageProvider)(nil)
	_ ports.CartCounter          = StaticCartCounter(nil)
)

// DefaultUser is the identity used by FakeAuthClient when a call does not name one.
func DefaultUser() *domainauth.User {
	return &domainauth.User{ID: "00000000-0000-4000-8000-00000000000a", Email: "mock.user@example.com"}
}

// FakeAuthClient is a scriptable in-memory auth client. Listeners are invoked
// synchronously outside the internal lock, as the real client does.
type FakeAuthClient struct {
	GetSessionFunc func(ctx context.Context) (*domainauth.Session, error)
	SetSessionFunc func(ctx context.Context, pair domainauth.TokenPair) (*domainauth.Session, error)
	SignInFunc     func(ctx context.Context, creds ports.Credentials) (*domainauth.Session, error)
	SignOutErr     error

	mu              sync.Mutex
	session         *domainauth.Session
	listeners       map[int]ports.AuthListener
	nextID          int
	setSessionCalls []domainauth.TokenPair
	signOutCalls    int
	unsubscribed    int
}

// NewFakeAuthClient creates a FakeAuthClient holding sess (which may be nil).
func NewFakeAuthClient(sess *domainauth.Session) *FakeAuthClient {
	return &FakeAuthClient{session: sess, listeners: make(map[int]ports.AuthListener)}
}

// SessionFor builds a session for user with fixed test tokens.
func SessionFor(user *domainauth.User) *domainauth.Session {
	return &domainauth.Session{
		AccessToken:  "access-" + user.ID,
		RefreshToken: "refresh-" + user.ID,
		TokenType:    "bearer",
		User:         user,
	}
}

func (f *FakeAuthClient) GetSession(ctx context.Context) (*domainauth.Session, error) {
	if f.GetSessionFunc != nil {
		return f.GetSessionFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *FakeAuthClient) OnAuthStateChange(listener ports.AuthListener) ports.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listeners == nil {
		f.listeners = make(map[int]ports.AuthListener)
	}
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener
	return &fakeSubscription{client: f, id: id}
}

// Emit delivers an event to every registered listener.
func (f *FakeAuthClient) Emit(ctx context.Context, event domainauth.Event, sess *domainauth.Session) {
	f.mu.Lock()
	f.session = sess
	listeners := make([]ports.AuthListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(ctx, event, sess)
	}
}

func (f *FakeAuthClient) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	f.mu.Unlock()
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.Emit(ctx, domainauth.EventSignedOut, nil)
	return nil
}

func (f *FakeAuthClient) SetSession(ctx context.Context, pair domainauth.TokenPair) (*domainauth.Session, error) {
	f.mu.Lock()
	f.setSessionCalls = append(f.setSessionCalls, pair)
	f.mu.Unlock()

	if f.SetSessionFunc != nil {
		return f.SetSessionFunc(ctx, pair)
	}
	sess := &domainauth.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		User:         DefaultUser(),
	}
	f.Emit(ctx, domainauth.EventSignedIn, sess)
	return sess, nil
}

func (f *FakeAuthClient) SignInWithPassword(ctx context.Context, creds ports.Credentials) (*domainauth.Session, error) {
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, creds)
	}
	user := DefaultUser()
	user.Email = creds.Email
	sess := SessionFor(user)
	f.Emit(ctx, domainauth.EventSignedIn, sess)
	return sess, nil
}

func (f *FakeAuthClient) SignUp(ctx context.Context, creds ports.Credentials) (*domainauth.Session, error) {
	return f.SignInWithPassword(ctx, creds)
}

// SetSessionCalls returns the token pairs passed to SetSession.
func (f *FakeAuthClient) SetSessionCalls() []domainauth.TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domainauth.TokenPair(nil), f.setSessionCalls...)
}

// SignOutCalls returns how many times SignOut was invoked.
func (f *FakeAuthClient) SignOutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

// ListenerCount returns the number of active subscriptions.
func (f *FakeAuthClient) ListenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Unsubscribed returns how many subscriptions have been released.
func (f *FakeAuthClient) Unsubscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type fakeSubscription struct {
	client *FakeAuthClient
	id     int
	once   sync.Once
}

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.mu.Lock()
		delete(s.client.listeners, s.id)
		s.client.unsubscribed++
		s.client.mu.Unlock()
	})
}

// FakeClientFactory hands out one FakeAuthClient per storage namespace.
type FakeClientFactory struct {
	New func(storage ports.LocalStorage) *FakeAuthClient

	mu      sync.Mutex
	clients []*FakeAuthClient
}

func (f *FakeClientFactory) ForBrowser(storage ports.LocalStorage) ports.AuthClient {
	var c *FakeAuthClient
	if f.New != nil {
		c = f.New(storage)
	} else {
		c = NewFakeAuthClient(nil)
	}
	f.mu.Lock()
	f.clients = append(f.clients, c)
	f.mu.Unlock()
	return c
}

// Clients returns every client built so far, in creation order.
func (f *FakeClientFactory) Clients() []*FakeAuthClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeAuthClient(nil), f.clients...)
}

// MemoryProfileStore is an in-memory profile store.
type MemoryProfileStore struct {
	mu       sync.Mutex
	profiles map[string]domainauth.Profile
	calls    int
	Err      error
}

// NewMemoryProfileStore creates a store seeded with profiles.
func NewMemoryProfileStore(profiles ...domainauth.Profile) *MemoryProfileStore {
	m := &MemoryProfileStore{profiles: make(map[string]domainauth.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *MemoryProfileStore) GetByUserID(_ context.Context, userID string) (*domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ports.ErrProfileNotFound
	}
	return &p, nil
}

// Put inserts or replaces a profile.
func (m *MemoryProfileStore) Put(p domainauth.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

// Calls returns how many lookups were served.
func (m *MemoryProfileStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MemoryStorage is an in-memory LocalStorage namespace.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
	Err   error
}

// NewMemoryStorage creates an empty storage namespace.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.items, key)
	return nil
}

// MemoryStorageProvider hands out one MemoryStorage per browser id.
type MemoryStorageProvider struct {
	mu         sync.Mutex
	namespaces map[string]*MemoryStorage
}

// NewMemoryStorageProvider creates an empty provider.
func NewMemoryStorageProvider() *MemoryStorageProvider {
	return &MemoryStorageProvider{namespaces: make(map[string]*MemoryStorage)}
}

func (p *MemoryStorageProvider) ForBrowser(browserID string) ports.LocalStorage {
	return p.Namespace(browserID)
}

// Namespace returns the concrete storage for browserID, creating it if needed.
func (p *MemoryStorageProvider) Namespace(browserID string) *MemoryStorage {
	p.mu.Lock()
	defer p.mu.Unlock()
	ns, ok := p.namespaces[browserID]
	if !ok {
		ns = NewMemoryStorage()
		p.namespaces[browserID] = ns
	}
	return ns
}

// StaticCartCounter maps browser ids to fixed item counts.
type StaticCartCounter map[string]int

func (c StaticCartCounter) ItemCount(_ context.Context, browserID string) (int, error) {
	return c[browserID], nil
}
