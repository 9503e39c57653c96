package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scolay/storefront/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			rl := &requestLog{}
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestLogKey{}, rl)))
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			}
			if rl.browserID != "" {
				attrs = append(attrs, slog.String("browser_id", rl.browserID))
			}
			logger.InfoContext(r.Context(), "http", attrs...)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// BrowserIDConfig configures the browser id cookie.
type BrowserIDConfig struct {
	CookieName   string // default "scolay_browser"
	CookieDomain string
	MaxAge       time.Duration // default one year
}

// BrowserID returns a middleware that identifies the browser by an opaque
// cookie, issuing a fresh uuid when the cookie is missing or malformed.
func BrowserID(cfg BrowserIDConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "scolay_browser"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 365 * 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				if parsed, perr := uuid.Parse(c.Value); perr == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    id,
					Path:     "/",
					Domain:   cfg.CookieDomain,
					HttpOnly: true,
					Secure:   isSecureRequest(r),
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(cfg.MaxAge.Seconds()),
				})
			}
			next.ServeHTTP(w, r.WithContext(WithBrowserID(r.Context(), id)))
		})
	}
}

// AuthContextSource hands out the AuthContext for a browser.
type AuthContextSource interface {
	Acquire(ctx context.Context, browserID string) (*service.AuthContext, error)
}

var _ AuthContextSource = (*service.AuthContextRegistry)(nil)

// AttachAuthContext returns a middleware that attaches the browser's
// AuthContext to the request. It must run after BrowserID.
func AttachAuthContext(src AuthContextSource, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := BrowserIDFrom(r.Context())
			if !ok {
				// No browser identity: handlers see ErrNoAuthContext.
				next.ServeHTTP(w, r)
				return
			}
			ac, err := src.Acquire(r.Context(), id)
			if err != nil {
				logger.ErrorContext(r.Context(), "acquire auth context failed", "error", err)
				status := http.StatusInternalServerError
				if errors.Is(err, service.ErrRegistryClosed) {
					status = http.StatusServiceUnavailable
				}
				WriteError(w, ErrorParams{Code: status, ErrCode: "auth_unavailable", Err: err})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
		})
	}
}

// Chain applies middlewares so the first one listed is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
