package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oakfield-labs/captionrelay/internal/app"
	"github.com/oakfield-labs/captionrelay/internal/config"
	"github.com/oakfield-labs/captionrelay/internal/health"
	llmmock "github.com/oakfield-labs/captionrelay/pkg/provider/llm/mock"
	sttmock "github.com/oakfield-labs/captionrelay/pkg/provider/stt/mock"
	roommock "github.com/oakfield-labs/captionrelay/pkg/room/mock"
)

func newTestApp(t *testing.T, platform *roommock.Platform) (*app.App, *app.SessionManager) {
	t.Helper()
	sm := app.NewSessionManager(app.SessionManagerConfig{
		Platform: platform,
		STT:      &sttmock.Provider{},
		LLM:      &llmmock.Provider{},
		Pipeline: config.DefaultPipelineConfig(),
		Agent:    config.AgentConfig{STTLanguage: "en"},
	})
	cfg := &config.Config{Server: config.ServerConfig{ListenAddr: ":0"}}
	h := health.New()
	a := app.New(cfg, sm, nil, h)
	return a, sm
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAppHealthOKWithNoCheckers(t *testing.T) {
	a, _ := newTestApp(t, &roommock.Platform{})
	rec := doJSON(t, a, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAppStartMissingRoomNameReturns400(t *testing.T) {
	a, _ := newTestApp(t, &roommock.Platform{})
	rec := doJSON(t, a, http.MethodPost, "/start", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAppStartMalformedBodyReturns400(t *testing.T) {
	a, _ := newTestApp(t, &roommock.Platform{})
	req := httptest.NewRequest(http.MethodPost, "/start", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAppStartJoinFailureReturns500(t *testing.T) {
	a, _ := newTestApp(t, &roommock.Platform{JoinError: context.DeadlineExceeded})
	rec := doJSON(t, a, http.MethodPost, "/start", map[string]string{"roomName": "room-1"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAppStartSuccessReturns200AndListsRoomInSessions(t *testing.T) {
	conn := roommock.NewConnection()
	a, sm := newTestApp(t, &roommock.Platform{JoinResult: conn})

	rec := doJSON(t, a, http.MethodPost, "/start", map[string]string{
		"roomName": "room-1", "targetLanguage": "es", "sttLanguage": "en",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, a, http.MethodGet, "/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status = %d", rec.Code)
	}
	var resp struct {
		ActiveRooms []string `json:"activeRooms"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sessions response: %v", err)
	}
	if len(resp.ActiveRooms) != 1 || resp.ActiveRooms[0] != "room-1" {
		t.Errorf("activeRooms = %v", resp.ActiveRooms)
	}

	sm.StopAll(context.Background())
}

func TestAppStartIsIdempotentOver200(t *testing.T) {
	conn := roommock.NewConnection()
	a, sm := newTestApp(t, &roommock.Platform{JoinResult: conn})

	body := map[string]string{"roomName": "room-1"}
	if rec := doJSON(t, a, http.MethodPost, "/start", body); rec.Code != http.StatusOK {
		t.Fatalf("first start status = %d", rec.Code)
	}
	if rec := doJSON(t, a, http.MethodPost, "/start", body); rec.Code != http.StatusOK {
		t.Fatalf("second start status = %d", rec.Code)
	}

	sm.StopAll(context.Background())
}

func TestAppStopMissingRoomNameReturns400(t *testing.T) {
	a, _ := newTestApp(t, &roommock.Platform{})
	rec := doJSON(t, a, http.MethodPost, "/stop", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAppStopInactiveRoomReturns200(t *testing.T) {
	a, _ := newTestApp(t, &roommock.Platform{})
	rec := doJSON(t, a, http.MethodPost, "/stop", map[string]string{"roomName": "never-started"})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (stop is idempotent)", rec.Code)
	}
}

func TestAppStopActiveRoomRemovesItFromSessions(t *testing.T) {
	conn := roommock.NewConnection()
	a, _ := newTestApp(t, &roommock.Platform{JoinResult: conn})

	doJSON(t, a, http.MethodPost, "/start", map[string]string{"roomName": "room-1"})
	rec := doJSON(t, a, http.MethodPost, "/stop", map[string]string{"roomName": "room-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}

	rec = doJSON(t, a, http.MethodGet, "/sessions", nil)
	var resp struct {
		ActiveRooms []string `json:"activeRooms"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sessions response: %v", err)
	}
	if len(resp.ActiveRooms) != 0 {
		t.Errorf("activeRooms after stop = %v", resp.ActiveRooms)
	}
}

func TestAppSessionsEmptyWhenNoRoomsActive(t *testing.T) {
	a, _ := newTestApp(t, &roommock.Platform{})
	rec := doJSON(t, a, http.MethodGet, "/sessions", nil)
	var resp struct {
		ActiveRooms []string `json:"activeRooms"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sessions response: %v", err)
	}
	if len(resp.ActiveRooms) != 0 {
		t.Errorf("activeRooms = %v, want empty", resp.ActiveRooms)
	}
}
