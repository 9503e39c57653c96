package httpx

import (
	"errors"
	"net/http"
)

// NotFound handles 404s. Browsers get the not-found page inside the layout;
// other clients get a JSON error.
func (h *UIHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if !isBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "not_found",
			Err:     errors.New("not found"),
		})
		return
	}

	data, ok := h.newPage(w, r, PageMeta{Title: "Not Found", PageTitle: "Page not found", CurrentPage: PageNotFound})
	if !ok {
		return
	}
	h.renderPageStatus(w, r, http.StatusNotFound, data)
}
