package httpx

import "net/http"

// Navbar renders the navbar partial. mobile=open expands the mobile menu; any
// other value collapses it. The active link follows the page htmx reports.
func (h *UIHandlers) Navbar(w http.ResponseWriter, r *http.Request) {
	layout, err := h.buildLayout(r, PageMeta{}, r.URL.Query().Get("mobile") == "open")
	if err != nil {
		h.logger().ErrorContext(r.Context(), "navbar rendered outside of an auth context", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if layout.Loading {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.T.RenderNamed(w, "navbar", &layout); err != nil {
		h.logAndRenderTemplateError(w, r, err, "navbar render")
	}
}
