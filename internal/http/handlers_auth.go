package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/scolay/storefront/internal/http/ui/viewmodel"
)

const defaultStatusWait = 2 * time.Second

// AuthHandlers serves the session endpoints driven by browser script: sign-out,
// visibility changes and the loading-state poll.
type AuthHandlers struct {
	T *TemplateRenderer
	// StatusWait bounds how long /auth/status holds a request open waiting for
	// the initial session check.
	StatusWait time.Duration
	Logger     *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) statusWait() time.Duration {
	if h.StatusWait > 0 {
		return h.StatusWait
	}
	return defaultStatusWait
}

// Logout signs the browser out and navigates home.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	ac, err := AuthContextFrom(r.Context())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "logout without an auth context", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	// Failures are logged by the context; the browser is sent home regardless.
	ac.SignOut(r.Context())
	redirect(w, r, viewmodel.PathHome)
}

// Visibility reports a page visibility change so a lost session can be recovered
// from the persisted token. htmx clients are refreshed when recovery signs them in.
// POST /auth/visibility (form field "visible": true|visible|false|hidden).
func (h *AuthHandlers) Visibility(w http.ResponseWriter, r *http.Request) {
	ac, err := AuthContextFrom(r.Context())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "visibility change without an auth context", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	v := r.PostFormValue("visible")
	visible := v == "true" || v == "visible"

	wasSignedIn := ac.Snapshot().SignedIn()
	ac.HandleVisibilityChange(r.Context(), visible)
	if !wasSignedIn && ac.Snapshot().SignedIn() && IsHTMX(r) {
		w.Header().Set("Hx-Refresh", "true")
	}
	w.WriteHeader(http.StatusNoContent)
}

type authStatus struct {
	Loading       bool   `json:"loading"`
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role,omitempty"`
}

// Status reports whether the initial session check has finished, waiting up to
// StatusWait for it. htmx pollers get the loading placeholder back until the
// check completes and then a full refresh.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	ac, err := AuthContextFrom(r.Context())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "status requested without an auth context", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	timer := time.NewTimer(h.statusWait())
	defer timer.Stop()
	select {
	case <-ac.Ready():
	case <-timer.C:
	case <-r.Context().Done():
		return
	}

	state := ac.Snapshot()
	if IsHTMX(r) {
		if state.Loading {
			if err := h.T.RenderNamed(w, "loading", nil); err != nil {
				h.logger().ErrorContext(r.Context(), "failed to render loading placeholder", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Hx-Refresh", "true")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	WriteJSON(w, http.StatusOK, authStatus{
		Loading:       state.Loading,
		Authenticated: state.SignedIn(),
		Role:          string(state.Role()),
	})
}
