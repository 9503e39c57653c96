package httpx

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

// HealthHandler serves /healthz. Checks run concurrently; any failure yields 503.
type HealthHandler struct {
	Checks map[string]HealthCheck
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.Checks))
		g       errgroup.Group
	)
	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := h.Checks[name]
		g.Go(func() error {
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	code, overall := http.StatusOK, "ok"
	for _, status := range results {
		if status != "ok" {
			code, overall = http.StatusServiceUnavailable, "degraded"
			break
		}
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}
	body := map[string]any{"status": overall}
	if len(results) > 0 {
		body["checks"] = results
	}
	WriteJSON(w, code, body)
}
