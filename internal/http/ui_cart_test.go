package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddToCart_HTMX(t *testing.T) {
	cart := newMemoryCart()
	h := newTestUIHandlers(t, cart)
	f := signedOutFixture(t)

	req := htmxRequest(formRequest(http.MethodPost, "/cart/items", url.Values{"product_id": {"kit-art"}, "quantity": {"2"}}))
	rec := httptest.NewRecorder()
	h.AddToCart(rec, f.attach(req))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.JSONEq(t, `{"cart:updated":{"count":2}}`, rec.Header().Get("Hx-Trigger"))
	assert.Equal(t, 2, cart.counts[testBrowserID])
}

func TestAddToCart_RedirectsWithoutHTMX(t *testing.T) {
	h := newTestUIHandlers(t, newMemoryCart())
	f := signedOutFixture(t)

	rec := httptest.NewRecorder()
	h.AddToCart(rec, f.attach(formRequest(http.MethodPost, "/cart/items", url.Values{"product_id": {"kit-art"}})))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get("Location"))
}

func TestAddToCart_Invalid(t *testing.T) {
	h := newTestUIHandlers(t, newMemoryCart())
	f := signedOutFixture(t)

	for name, values := range map[string]url.Values{
		"missing product": {"quantity": {"1"}},
		"too many":        {"product_id": {"kit-art"}, "quantity": {"100"}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.AddToCart(rec, f.attach(formRequest(http.MethodPost, "/cart/items", values)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAddToCart_StoreFailure(t *testing.T) {
	cart := newMemoryCart()
	cart.err = errors.New("redis down")
	h := newTestUIHandlers(t, cart)
	f := signedOutFixture(t)

	rec := httptest.NewRecorder()
	h.AddToCart(rec, f.attach(formRequest(http.MethodPost, "/cart/items", url.Values{"product_id": {"kit-art"}})))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis down")
}

func TestCartPage(t *testing.T) {
	cart := newMemoryCart()
	cart.counts[testBrowserID] = 1
	h := newTestUIHandlers(t, cart)
	f := signedOutFixture(t)

	rec := httptest.NewRecorder()
	h.Cart(rec, f.attach(httptest.NewRequest(http.MethodGet, "/cart", nil)))
	assert.Contains(t, rec.Body.String(), "You have 1 item in your cart.")

	rec = httptest.NewRecorder()
	h.ClearCart(rec, f.attach(htmxRequest(formRequest(http.MethodPost, "/cart/clear", nil))))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, cart.counts[testBrowserID])
}

func TestCart_Unavailable(t *testing.T) {
	h := newTestUIHandlers(t, nil)
	f := signedOutFixture(t)

	rec := httptest.NewRecorder()
	h.AddToCart(rec, f.attach(formRequest(http.MethodPost, "/cart/items", url.Values{"product_id": {"kit-art"}})))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
