package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	mockauth "github.com/scolay/storefront/internal/mocks/auth"
	"github.com/scolay/storefront/internal/service"
)

const testBrowserID = "7d0c5a1e-3f3b-4a3e-9c55-000000000001"

// newTestRenderer parses the on-disk templates so tests see edits without a rebuild.
func newTestRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: os.DirFS(TemplatePathFromTest)})
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	return tr
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// authFixture wires a started AuthContext around a scriptable client.
type authFixture struct {
	Client   *mockauth.FakeAuthClient
	Profiles *mockauth.MemoryProfileStore
	Storage  *mockauth.MemoryStorage
	Ctx      *service.AuthContext
}

func newAuthFixture(t *testing.T, sess *domainauth.Session, profiles ...domainauth.Profile) *authFixture {
	t.Helper()
	f := &authFixture{
		Client:   mockauth.NewFakeAuthClient(sess),
		Profiles: mockauth.NewMemoryProfileStore(profiles...),
		Storage:  mockauth.NewMemoryStorage(),
	}
	f.Ctx = service.NewAuthContext(service.AuthContextOptions{
		Client:   f.Client,
		Profiles: f.Profiles,
		Token:    service.TokenStorage{Storage: f.Storage, Key: "scolay-auth-token"},
	})
	t.Cleanup(f.Ctx.Close)
	return f
}

// started resolves the initial session before returning.
func (f *authFixture) started() *authFixture {
	f.Ctx.Start(context.Background())
	return f
}

func signedOutFixture(t *testing.T) *authFixture {
	t.Helper()
	return newAuthFixture(t, nil).started()
}

func signedInFixture(t *testing.T, role domainauth.Role) *authFixture {
	t.Helper()
	user := mockauth.DefaultUser()
	name := "Ada Lovelace"
	return newAuthFixture(t, mockauth.SessionFor(user),
		domainauth.Profile{ID: user.ID, Role: role, FullName: &name}).started()
}

// attach binds the fixture's context and the test browser id to r.
func (f *authFixture) attach(r *http.Request) *http.Request {
	ctx := WithBrowserID(r.Context(), testBrowserID)
	if f != nil {
		ctx = WithAuthContext(ctx, f.Ctx)
	}
	return r.WithContext(ctx)
}

func formRequest(method, target string, values url.Values) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func htmxRequest(r *http.Request) *http.Request {
	r.Header.Set("Hx-Request", "true")
	return r
}

// memoryCart is an in-memory CartService.
type memoryCart struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newMemoryCart() *memoryCart { return &memoryCart{counts: make(map[string]int)} }

func (c *memoryCart) ItemCount(_ context.Context, browserID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[browserID], c.err
}

func (c *memoryCart) Add(_ context.Context, browserID, _ string, qty int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.counts[browserID] += qty
	return c.counts[browserID], nil
}

func (c *memoryCart) Clear(_ context.Context, browserID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, browserID)
	return c.err
}

func newTestUIHandlers(t *testing.T, cart CartService) *UIHandlers {
	t.Helper()
	names, err := service.NewDisplayNamer("user_metadata.full_name || email")
	if err != nil {
		t.Fatalf("display namer: %v", err)
	}
	return &UIHandlers{T: newTestRenderer(t), Carts: cart, Names: names}
}
