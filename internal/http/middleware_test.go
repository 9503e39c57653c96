package httpx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockauth "github.com/scolay/storefront/internal/mocks/auth"
	"github.com/scolay/storefront/internal/service"
)

func TestBrowserID_IssuesCookie(t *testing.T) {
	var seen string
	h := BrowserID(BrowserIDConfig{})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = BrowserIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	c := cookieNamed(rec, "scolay_browser")
	require.NotNil(t, c)
	assert.Equal(t, seen, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestBrowserID_ReusesValidCookie(t *testing.T) {
	var seen string
	h := BrowserID(BrowserIDConfig{CookieName: "b"})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = BrowserIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "b", Value: testBrowserID})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, testBrowserID, seen)
	assert.Nil(t, cookieNamed(rec, "b"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "b", Value: "not-a-uuid"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEqual(t, "not-a-uuid", seen)
	assert.NotNil(t, cookieNamed(rec, "b"))
}

type stubSource struct {
	ac  *service.AuthContext
	err error
	ids []string
}

func (s *stubSource) Acquire(_ context.Context, browserID string) (*service.AuthContext, error) {
	s.ids = append(s.ids, browserID)
	return s.ac, s.err
}

func TestAttachAuthContext(t *testing.T) {
	ac := service.NewAuthContext(service.AuthContextOptions{
		Client:   mockauth.NewFakeAuthClient(nil),
		Profiles: mockauth.NewMemoryProfileStore(),
	})
	t.Cleanup(ac.Close)
	src := &stubSource{ac: ac}

	var got *service.AuthContext
	h := AttachAuthContext(src, nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = AuthContextFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(WithBrowserID(req.Context(), testBrowserID)))

	assert.Same(t, ac, got)
	assert.Equal(t, []string{testBrowserID}, src.ids)
}

func TestAttachAuthContext_WithoutBrowserID(t *testing.T) {
	src := &stubSource{}
	var err error
	h := AttachAuthContext(src, nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, err = AuthContextFrom(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.ErrorIs(t, err, ErrNoAuthContext)
	assert.Empty(t, src.ids)
}

func TestAttachAuthContext_AcquireFailure(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: service.ErrRegistryClosed, want: http.StatusServiceUnavailable},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := AttachAuthContext(&stubSource{err: tt.err}, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("next must not run")
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req.WithContext(WithBrowserID(req.Context(), testBrowserID)))
		assert.Equal(t, tt.want, rec.Code)
		assert.Contains(t, rec.Body.String(), "auth_unavailable")
	}
}

func TestLogging_IncludesBrowserID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), Logging(logger), BrowserID(BrowserIDConfig{}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"browser_id":"`)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	h := Recover(slog.New(slog.NewTextHandler(&buf, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "kaboom")
}
