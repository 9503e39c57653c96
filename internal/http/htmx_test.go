package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWantsPartial(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, WantsPartial(r))

	r.Header.Set("Hx-Request", "true")
	assert.True(t, WantsPartial(r))

	r.Header.Set("Hx-Boosted", "true")
	assert.False(t, WantsPartial(r), "boosted navigation renders the full layout")
}

func TestCurrentPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ui/navbar?mobile=open", nil)
	assert.Equal(t, "/ui/navbar", CurrentPath(r))

	r.Header.Set("Hx-Request", "true")
	r.Header.Set("Hx-Current-Url", "http://localhost:8080/schools?x=1")
	assert.Equal(t, "/schools", CurrentPath(r))

	r.Header.Set("Hx-Current-Url", "")
	assert.Equal(t, "/ui/navbar", CurrentPath(r))
}

func TestSetHXTrigger(t *testing.T) {
	w := httptest.NewRecorder()
	SetHXTrigger(w, "cart:updated", nil)
	assert.JSONEq(t, `{"cart:updated":true}`, w.Header().Get("Hx-Trigger"))

	w = httptest.NewRecorder()
	HTMX(w).Trigger("cart:updated", map[string]int{"count": 3})
	assert.JSONEq(t, `{"cart:updated":{"count":3}}`, w.Header().Get("Hx-Trigger"))
}

func TestRedirect(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	redirect(w, r, "/")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	r.Header.Set("Hx-Request", "true")
	w = httptest.NewRecorder()
	redirect(w, r, "/")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "/", w.Header().Get("Hx-Redirect"))
}

func TestSafeRedirectPath(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/cart":                "/cart",
		"/schools?page=2":      "/schools?page=2",
		"https://evil.example": "/",
		"//evil.example/path":  "/",
		"relative/path":        "/",
		"javascript:alert(1)":  "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeRedirectPath(in), "input=%q", in)
	}
}
