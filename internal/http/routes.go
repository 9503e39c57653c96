package httpx

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	storefront "github.com/scolay/storefront"
	"github.com/scolay/storefront/internal/http/ui/viewmodel"
	"github.com/scolay/storefront/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth  AuthContextSource     // Required
	Carts CartService           // Optional; the cart badge stays hidden without it
	Names *service.DisplayNamer // Optional; falls back to the email address

	HealthChecks map[string]HealthCheck

	CookieDomain  string
	BrowserCookie string
	// StatusWait bounds the /auth/status long poll.
	StatusWait time.Duration

	CompressionEnabled bool
	CompressionLevel   int

	// TemplateFS overrides the template source (tests).
	TemplateFS fs.FS
	IsDev      bool         // Development mode: templates and static files are read from disk
	Logger     *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates and configures the HTTP handler tree. Health checks and static
// assets bypass the browser middleware so health checks never allocate auth contexts.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Auth == nil {
		return nil, errors.New("router requires an auth context source")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS(services),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create template renderer: %w", err)
	}

	ui := &UIHandlers{
		T:      tr,
		Carts:  services.Carts,
		Names:  services.Names,
		IsDev:  services.IsDev,
		Logger: logger,
	}
	auth := &AuthHandlers{T: tr, StatusWait: services.StatusWait, Logger: logger}

	app := http.NewServeMux()
	registerUIRoutes(app, ui)
	registerAuthRoutes(app, auth, ui)

	browser := Chain(app,
		BrowserID(BrowserIDConfig{CookieName: services.BrowserCookie, CookieDomain: services.CookieDomain}),
		CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain}),
		AttachAuthContext(services.Auth, logger),
	)

	root := http.NewServeMux()
	health := &HealthHandler{Checks: services.HealthChecks}
	root.Handle("GET /healthz", health)
	root.Handle("HEAD /healthz", health)
	root.Handle("GET /static/", staticHandler(services.IsDev))
	root.Handle("/", browser)

	mws := []func(http.Handler) http.Handler{Recover(logger), Logging(logger)}
	if services.CompressionEnabled {
		mws = append(mws, Compression(CompressionConfig{Level: services.CompressionLevel, Logger: logger}))
	}
	return Chain(root, mws...), nil
}

func registerUIRoutes(mux *http.ServeMux, h *UIHandlers) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET "+viewmodel.PathSchools, h.Schools)
	mux.HandleFunc("GET "+viewmodel.PathSuppliers, h.Suppliers)
	mux.Handle("GET "+viewmodel.PathAdmin, h.Portal(PageAdmin, "Admin", "Platform administrators"))
	mux.Handle("GET "+viewmodel.PathSchoolAdmin, h.Portal(PageSchoolAdmin, "School Portal", "School administrators"))
	mux.Handle("GET "+viewmodel.PathSupplierAdmin,
		h.Portal(PageSupplierAdmin, "Supplier Portal", "Supplier administrators"))

	mux.HandleFunc("GET "+viewmodel.PathCart, h.Cart)
	mux.HandleFunc("POST /cart/items", h.AddToCart)
	mux.HandleFunc("POST /cart/clear", h.ClearCart)

	mux.HandleFunc("GET "+viewmodel.PathNavbarPartial, h.Navbar)

	// Everything else, including unmatched methods on known paths.
	mux.HandleFunc("/", h.NotFound)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, ui *UIHandlers) {
	mux.HandleFunc("GET "+viewmodel.PathLogin, ui.LoginPage)
	mux.HandleFunc("POST "+viewmodel.PathLogin, ui.Login)
	mux.HandleFunc("GET "+viewmodel.PathSignup, ui.SignupPage)
	mux.HandleFunc("POST "+viewmodel.PathSignup, ui.Signup)

	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("POST /auth/visibility", h.Visibility)
	mux.HandleFunc("GET /auth/status", h.Status)
}

// templateFS chooses the template source: an explicit override, the disk in dev
// mode for hot reloading, otherwise the embedded copy.
func templateFS(services RouterServices) fs.FS {
	if services.TemplateFS != nil {
		return services.TemplateFS
	}
	if services.IsDev {
		return os.DirFS(TemplatePathFromRoot)
	}
	sub, err := fs.Sub(storefront.TemplateFS, TemplatePathFromRoot)
	if err != nil {
		return os.DirFS(TemplatePathFromRoot)
	}
	return sub
}

// staticHandler serves /static/* from disk in dev mode and from the embedded FS otherwise.
func staticHandler(isDev bool) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))), true)
	}
	sub, err := fs.Sub(storefront.StaticFS, "frontend/static")
	if err != nil {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))), false)
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServerFS(sub)), false)
}

// staticWithCacheHeaders disables caching in dev and allows a short shared cache otherwise.
func staticWithCacheHeaders(handler http.Handler, isDev bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isDev {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		handler.ServeHTTP(w, r)
	})
}
