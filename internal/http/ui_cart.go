package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/scolay/storefront/internal/adapters/redis"
	"github.com/scolay/storefront/internal/http/ui/viewmodel"
)

type cartView struct {
	Count int
}

const maxCartQuantity = 99

// Cart renders the cart summary.
func (h *UIHandlers) Cart(w http.ResponseWriter, r *http.Request) {
	data, ok := h.newPage(w, r, PageMeta{Title: "Cart", PageTitle: "Your cart", CurrentPage: PageCart})
	if !ok {
		return
	}
	data.Cart = &cartView{Count: data.Nav.CartCount}
	h.renderPage(w, r, data)
}

// AddToCart adds product_id (quantity defaults to 1) and signals the navbar to refresh its badge.
func (h *UIHandlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	browserID, ok := h.cartBrowser(w, r)
	if !ok {
		return
	}
	productID := strings.TrimSpace(r.PostFormValue("product_id"))
	qty := parseIntForm(r, "quantity", 1)
	if productID == "" || qty > maxCartQuantity {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_cart_item",
			Err: errors.New("product_id and a quantity between 1 and 99 are required")})
		return
	}

	count, err := h.Carts.Add(r.Context(), browserID, productID, qty)
	if err != nil {
		if errors.Is(err, redis.ErrInvalidQuantity) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_cart_item", Err: err})
			return
		}
		h.logger().ErrorContext(r.Context(), "failed to add cart item", "product_id", productID, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "cart_unavailable",
			Err: errors.New("unable to update cart")})
		return
	}
	h.cartUpdated(w, r, count)
}

// ClearCart empties the cart.
func (h *UIHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	browserID, ok := h.cartBrowser(w, r)
	if !ok {
		return
	}
	if err := h.Carts.Clear(r.Context(), browserID); err != nil {
		h.logger().ErrorContext(r.Context(), "failed to clear cart", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "cart_unavailable",
			Err: errors.New("unable to update cart")})
		return
	}
	h.cartUpdated(w, r, 0)
}

func (h *UIHandlers) cartBrowser(w http.ResponseWriter, r *http.Request) (string, bool) {
	browserID, ok := BrowserIDFrom(r.Context())
	if !ok || h.Carts == nil {
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "cart_unavailable",
			Err: errors.New("cart is not available")})
		return "", false
	}
	return browserID, true
}

// cartUpdated answers htmx with a cart:updated trigger and everyone else with a redirect to the cart.
func (h *UIHandlers) cartUpdated(w http.ResponseWriter, r *http.Request, count int) {
	if IsHTMX(r) {
		HTMX(w).Trigger("cart:updated", map[string]int{"count": count})
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, viewmodel.PathCart, http.StatusSeeOther)
}
