// Package health provides the control surface's health check handler.
//
// The external interface names a single GET /health endpoint returning
// {status, timestamp}. Internally the handler still runs a list of
// [Checker] functions against the configured STT and LLM backends (the
// thing actually worth knowing about for an agent whose only job is
// calling out to those two backends) and folds their results into the
// same response body, rather than exposing a second /readyz route.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout is the maximum time a single check may take before its
// context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. Check returns nil when the
// dependency is healthy and a non-nil error describing the failure
// otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "stt",
	// "llm"). It appears as a key in the JSON response's checks map.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for /health.
type result struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Handler serves GET /health. It is safe for concurrent use; the checker
// list is fixed at construction time.
type Handler struct {
	checkers []Checker
	now      func() time.Time
}

// New creates a [Handler] that evaluates the given checkers on each
// request. Checkers run concurrently; see [Handler.Health].
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c, now: time.Now}
}

// Health reports process status alongside the outcome of every registered
// [Checker]. It returns 200 when all checkers pass (or none are
// registered), 503 otherwise.
//
// Checkers run concurrently, each under its own timeout, mirroring the
// upstream mcphost package's probe-every-tool-concurrently-via-errgroup
// pattern; a slow STT check never delays the LLM check behind it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(r.Context())
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	// Per-checker failures are recorded above, not propagated; g.Wait only
	// ever returns nil since no Go func returns an error.
	_ = g.Wait()

	allOK := true
	for _, c := range h.checkers {
		if checks[c.Name] != "ok" {
			allOK = false
			break
		}
	}

	res := result{
		Status:    "ok",
		Timestamp: h.now(),
		Checks:    checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the GET /health route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
