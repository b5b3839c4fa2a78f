// Package app wires the captioning subsystems into a running agent process:
// the session manager (one entry per active room), the HTTP control
// surface, and the health handler.
//
// App owns the full lifecycle: New registers the HTTP routes around an
// already-built SessionManager and health handler and prepares the server,
// Run starts the HTTP server and blocks until ctx is cancelled, and
// Shutdown tears everything down in order.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oakfield-labs/captionrelay/internal/config"
	"github.com/oakfield-labs/captionrelay/internal/health"
	"github.com/oakfield-labs/captionrelay/internal/observe"
)

// App owns the HTTP control surface and the session manager it drives.
type App struct {
	cfg     *config.Config
	sm      *SessionManager
	metrics *observe.Metrics
	health  *health.Handler

	srv *http.Server

	stopOnce sync.Once
}

// New creates an App wiring mux, sm, metrics, and health into an HTTP
// server listening on cfg.Server.ListenAddr.
func New(cfg *config.Config, sm *SessionManager, metrics *observe.Metrics, healthHandler *health.Handler) *App {
	a := &App{cfg: cfg, sm: sm, metrics: metrics, health: healthHandler}

	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.HandleFunc("POST /start", a.handleStart)
	mux.HandleFunc("POST /stop", a.handleStop)
	mux.HandleFunc("GET /sessions", a.handleSessions)

	var handler http.Handler = mux
	if metrics != nil {
		handler = observe.Middleware(metrics)(mux)
	}

	a.srv = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: handler,
	}
	return a
}

// ServeHTTP implements [http.Handler] by delegating to the wrapped mux and
// middleware chain, without requiring a bound listener. Used by tests to
// exercise the control surface in-process.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.srv.Handler.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until ctx is cancelled, at which
// point it shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("control surface listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and every active room session. Safe to
// call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down control surface")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "error", err)
			shutdownErr = err
		}
		a.sm.StopAll(ctx)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// startRequest is the POST /start request body.
type startRequest struct {
	RoomName       string `json:"roomName"`
	TargetLanguage string `json:"targetLanguage"`
	STTLanguage    string `json:"sttLanguage"`
}

// handleStart joins and begins captioning a room. Returns 400 when
// roomName is missing, 500 on join/configuration failure, 200 otherwise
// (including when the room is already active, per the idempotent-start
// contract).
func (a *App) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := observe.StartSpan(r.Context(), "app.start")
	defer span.End()

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}
	if req.RoomName == "" {
		writeError(w, http.StatusBadRequest, "roomName is required")
		return
	}

	if err := a.sm.Start(ctx, req.RoomName, req.TargetLanguage, req.STTLanguage); err != nil {
		observe.Logger(ctx).Error("start room failed", "room", req.RoomName, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "started", "roomName": req.RoomName})
}

// stopRequest is the POST /stop request body.
type stopRequest struct {
	RoomName string `json:"roomName"`
}

// handleStop tears down a room's session. Returns 400 when roomName is
// missing, 200 otherwise (including when the room was not active, per the
// idempotent-stop contract).
func (a *App) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx, span := observe.StartSpan(r.Context(), "app.stop")
	defer span.End()

	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}
	if req.RoomName == "" {
		writeError(w, http.StatusBadRequest, "roomName is required")
		return
	}

	if err := a.sm.StopRoom(ctx, req.RoomName); err != nil {
		observe.Logger(ctx).Error("stop room failed", "room", req.RoomName, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "roomName": req.RoomName})
}

// sessionsResponse is the GET /sessions response body.
type sessionsResponse struct {
	ActiveRooms []string `json:"activeRooms"`
}

// handleSessions lists every room with a live captioning session.
func (a *App) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionsResponse{ActiveRooms: a.sm.ActiveRooms()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
