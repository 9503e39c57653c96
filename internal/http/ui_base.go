package httpx

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"net/http"

	"github.com/scolay/storefront/internal/http/ui/viewmodel"
	"github.com/scolay/storefront/internal/service"
)

// CartService is the cart collaborator as seen by the UI.
type CartService interface {
	ItemCount(ctx context.Context, browserID string) (int, error)
	Add(ctx context.Context, browserID, productID string, qty int) (int, error)
	Clear(ctx context.Context, browserID string) error
}

// UIHandlers serves browser-facing routes.
type UIHandlers struct {
	T      *TemplateRenderer
	Carts  CartService
	Names  *service.DisplayNamer
	IsDev  bool // Development mode flag for enhanced error reporting
	Logger *slog.Logger
}

// logger returns the configured logger or falls back to slog.Default().
func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

// pageData is the root template value for every page.
type pageData struct {
	viewmodel.Layout

	Form    *authForm
	Catalog *catalogView
	Portal  *portalView
	Cart    *cartView
}

// LayoutData implements viewmodel.LayoutProvider.
func (p *pageData) LayoutData() *viewmodel.Layout { return &p.Layout }

// buildLayout constructs shared layout metadata from the request's auth context.
// It fails only when no AuthContext is attached to the request.
func (h *UIHandlers) buildLayout(r *http.Request, meta PageMeta, mobileOpen bool) (viewmodel.Layout, error) {
	ac, err := AuthContextFrom(r.Context())
	if err != nil {
		return viewmodel.Layout{}, err
	}
	state := ac.Snapshot()

	path := r.URL.Path
	if WantsPartial(r) {
		path = CurrentPath(r)
	}
	layout := viewmodel.Layout{
		Title:       meta.Title,
		PageTitle:   meta.PageTitle,
		CurrentPage: meta.CurrentPage,
		CurrentPath: path,
		CSRFToken:   GetCSRFToken(r),
		Loading:     state.Loading,
	}
	if state.Loading {
		return layout, nil
	}

	name := h.Names.Name(state.User, state.Profile)
	if state.SignedIn() {
		layout.IsAuthenticated = true
		layout.User = &viewmodel.User{
			ID:          state.User.ID,
			Email:       state.User.Email,
			DisplayName: name,
			Role:        string(state.Role()),
		}
	}
	layout.Nav = viewmodel.BuildNavbar(viewmodel.NavbarInput{
		State:       state,
		DisplayName: name,
		CartCount:   h.cartCount(r),
		MobileOpen:  mobileOpen,
		CurrentPath: path,
	})
	return layout, nil
}

// cartCount returns the browser's cart size. Failures degrade to an empty badge.
func (h *UIHandlers) cartCount(r *http.Request) int {
	if h.Carts == nil {
		return 0
	}
	browserID, ok := BrowserIDFrom(r.Context())
	if !ok {
		return 0
	}
	n, err := h.Carts.ItemCount(r.Context(), browserID)
	if err != nil {
		h.logger().WarnContext(r.Context(), "cart count unavailable", "error", err)
		return 0
	}
	return n
}

// newPage builds the page frame, writing a 500 when the request has no auth context.
func (h *UIHandlers) newPage(w http.ResponseWriter, r *http.Request, meta PageMeta) (*pageData, bool) {
	layout, err := h.buildLayout(r, meta, false)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "page rendered outside of an auth context",
			"path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return &pageData{Layout: layout}, true
}

// renderPage renders a page with proper htmx partial support. While the initial
// session check is in flight, only the loading placeholder is rendered.
func (h *UIHandlers) renderPage(w http.ResponseWriter, r *http.Request, data *pageData) {
	h.renderPageStatus(w, r, http.StatusOK, data)
}

func (h *UIHandlers) renderPageStatus(w http.ResponseWriter, r *http.Request, status int, data *pageData) {
	if data.Loading || !WantsPartial(r) {
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(status)
		}
		if err := h.T.RenderFull(w, r, data); err != nil {
			h.logAndRenderTemplateError(w, r, err, "full page render")
		}
		return
	}

	// Hint client JS to update nav active state based on current path.
	SetHXTrigger(w, "nav:activate", map[string]string{"path": r.URL.Path})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}

	// A <title> element lets htmx update document.title on partial swaps.
	if _, err := w.Write([]byte(`<title>` + html.EscapeString(data.Title) + ` · Scolay</title>`)); err != nil {
		h.logger().Error("failed to write partial document title", "error", err)
		return
	}
	if err := h.T.RenderPartial(w, data.CurrentPage, data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "partial content render")
	}
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, context string) {
	h.logger().Error("template rendering failed",
		"error", err,
		"context", context,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		if _, writeErr := w.Write([]byte(`<div class="template-error"><h2>Template Rendering Error</h2>` +
			`<p><strong>Context:</strong> ` + html.EscapeString(context) + `</p>` +
			`<p><strong>Path:</strong> ` + html.EscapeString(r.URL.Path) + `</p>` +
			`<pre>` + html.EscapeString(err.Error()) + `</pre></div>`)); writeErr != nil {
			h.logger().Error("failed to write template error response", "error", writeErr)
		}
		return
	}

	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// requireAuthContext fetches the request's AuthContext, writing a 500 when it is missing.
func (h *UIHandlers) requireAuthContext(w http.ResponseWriter, r *http.Request) (*service.AuthContext, bool) {
	ac, err := AuthContextFrom(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoAuthContext) {
			h.logger().ErrorContext(r.Context(), "auth handler reached without an auth context", "path", r.URL.Path)
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return ac, true
}
