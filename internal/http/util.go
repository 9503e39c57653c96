package httpx

import (
	"net/http"
	"strconv"
	"strings"
)

// parseIntForm returns the integer value of a form field or a default.
// It is tolerant of missing/invalid values.
func parseIntForm(r *http.Request, key string, def int) int {
	if v := strings.TrimSpace(r.PostFormValue(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// isBrowserRequest reports whether the client expects HTML: htmx requests and
// anything accepting text/html, except static assets.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/static/") {
		return false
	}
	if IsHTMX(r) {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
