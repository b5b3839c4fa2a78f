// Package app wires the captioning subsystems into a running agent process:
// the session manager (one entry per active room), the HTTP control
// surface, and the health handler.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oakfield-labs/captionrelay/internal/caption"
	"github.com/oakfield-labs/captionrelay/internal/config"
	"github.com/oakfield-labs/captionrelay/internal/observe"
	"github.com/oakfield-labs/captionrelay/pkg/audio"
	"github.com/oakfield-labs/captionrelay/pkg/provider/llm"
	"github.com/oakfield-labs/captionrelay/pkg/provider/stt"
	"github.com/oakfield-labs/captionrelay/pkg/room"
)

// SessionInfo describes one active room session.
type SessionInfo struct {
	RoomName       string
	TargetLanguage string
	STTLanguage    string
	StartedAt      time.Time
}

// roomSession owns every per-room subsystem: the room connection, the
// speaker-shared filter/assembler/publisher/translator, and the per-track
// pipeline goroutines the orchestrator spawns as tracks subscribe.
type roomSession struct {
	info SessionInfo

	conn      room.Connection
	prefs     *caption.PrefsStore
	filter    *caption.Filter
	assembler *caption.Assembler
	pipeline  *caption.Pipeline

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SessionManager owns every active room's captioning session. Only one
// session per room name may be active at a time; starting an
// already-running room is a no-op success (idempotent), matching the
// control surface's error-handling contract.
//
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu    sync.Mutex
	rooms map[string]*roomSession

	platform room.Platform
	sttProv  stt.Provider
	llmProv  llm.Provider
	pipeCfg  config.PipelineConfig
	agentCfg config.AgentConfig
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// SessionManagerConfig holds every dependency a [SessionManager] needs.
// STT and LLM are expected to already be wrapped with fallback/circuit-
// breaker behavior by the caller (see resilience.STTFallback/LLMFallback);
// SessionManager treats them as plain providers.
type SessionManagerConfig struct {
	Platform  room.Platform
	STT       stt.Provider
	LLM       llm.Provider
	Pipeline  config.PipelineConfig
	Agent     config.AgentConfig
	Metrics   *observe.Metrics
}

// NewSessionManager creates a [SessionManager] with no active rooms.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	return &SessionManager{
		rooms:    make(map[string]*roomSession),
		platform: cfg.Platform,
		sttProv:  cfg.STT,
		llmProv:  cfg.LLM,
		pipeCfg:  cfg.Pipeline,
		agentCfg: cfg.Agent,
		metrics:  cfg.Metrics,
		logger:   slog.Default(),
	}
}

// Start joins roomName and begins captioning it. targetLanguage and
// sttLanguage override the agent's configured defaults for every speaker in
// the room until overridden per-participant via a language_prefs message.
//
// Returns nil if roomName is already active (idempotent per the control
// surface's error-handling contract).
func (sm *SessionManager) Start(ctx context.Context, roomName, targetLanguage, sttLanguage string) error {
	sm.mu.Lock()
	if _, active := sm.rooms[roomName]; active {
		sm.mu.Unlock()
		sm.logger.Info("session: start called on already-active room", "room", roomName)
		return nil
	}
	sm.mu.Unlock()

	if sttLanguage == "" {
		sttLanguage = sm.agentCfg.STTLanguage
	}

	conn, err := sm.platform.Join(ctx, roomName)
	if err != nil {
		return fmt.Errorf("session: join room %q: %w", roomName, err)
	}

	rs := &roomSession{
		info: SessionInfo{
			RoomName:       roomName,
			TargetLanguage: targetLanguage,
			STTLanguage:    sttLanguage,
			StartedAt:      time.Now(),
		},
		conn:  conn,
		prefs: caption.NewPrefsStore(sttLanguage, targetLanguage),
	}

	publisher := caption.NewRoomPublisher(conn,
		caption.WithChatMirror(sm.agentCfg.AgentSendChat),
		caption.WithPublisherMetrics(sm.metrics),
	)
	translator := caption.NewLLMTranslator(sm.llmProv, rs.prefs, publisher,
		caption.WithTranslatorMetrics(sm.metrics),
	)
	rs.filter = caption.NewFilter(
		caption.WithBlocklist(sm.pipeCfg.BlocklistPhrasesList()),
		caption.WithShortHighRMS(sm.pipeCfg.ShortHighRMS),
		caption.WithRepeatWindow(time.Duration(sm.pipeCfg.RepeatWindowMS)*time.Millisecond),
	)
	rs.assembler = caption.NewAssembler(publisher, translator,
		caption.WithWeakEndWords(sm.pipeCfg.WeakEndWordsList()),
		caption.WithPunctGrace(time.Duration(sm.pipeCfg.PunctGraceMS)*time.Millisecond),
		caption.WithPauseFinal(time.Duration(sm.pipeCfg.PauseFinalMS)*time.Millisecond),
		caption.WithMinCharsForFinal(sm.pipeCfg.MinCharsForFinal),
	)
	rs.pipeline = caption.NewPipeline(sm.sttProv, rs.filter, rs.assembler, rs.prefs,
		caption.WithSTTModel(sm.agentCfg.OpenAISTTModel),
		caption.WithPipelineMetrics(sm.metrics),
		caption.WithAggregatorOptions(
			audioAggregatorOptions(sm.pipeCfg)...,
		),
	)

	sessionCtx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel

	sm.mu.Lock()
	sm.rooms[roomName] = rs
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.ActiveRooms.Add(ctx, 1)
	}

	rs.wg.Add(1)
	go sm.runOrchestrator(sessionCtx, rs)

	sm.logger.Info("session started", "room", roomName,
		"targetLanguage", targetLanguage, "sttLanguage", sttLanguage)
	return nil
}

// StopRoom tears down roomName's session: cancels its orchestrator (which
// flushes every speaker as final before its pipeline goroutines exit) and
// leaves the room. Idempotent: stopping an inactive room is a success.
func (sm *SessionManager) StopRoom(_ context.Context, roomName string) error {
	sm.mu.Lock()
	rs, active := sm.rooms[roomName]
	delete(sm.rooms, roomName)
	sm.mu.Unlock()

	if !active {
		return nil
	}

	rs.cancel()
	rs.wg.Wait()

	if err := rs.conn.Leave(); err != nil {
		sm.logger.Warn("session: leave room error", "room", roomName, "error", err)
	}

	if sm.metrics != nil {
		sm.metrics.ActiveRooms.Add(context.Background(), -1)
	}

	sm.logger.Info("session stopped", "room", roomName)
	return nil
}

// ActiveRooms lists every room with a live session, for GET /sessions.
func (sm *SessionManager) ActiveRooms() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]string, 0, len(sm.rooms))
	for name := range sm.rooms {
		out = append(out, name)
	}
	return out
}

// StopAll tears down every active room, for process shutdown.
func (sm *SessionManager) StopAll(ctx context.Context) {
	for _, name := range sm.ActiveRooms() {
		if err := sm.StopRoom(ctx, name); err != nil {
			sm.logger.Warn("session: stop-all error", "room", name, "error", err)
		}
	}
}

// audioAggregatorOptions translates the pipeline config's millisecond/RMS
// knobs into [audio.AggregatorOption] values shared by every speaker's
// frame aggregator in a room.
func audioAggregatorOptions(cfg config.PipelineConfig) []audio.AggregatorOption {
	return []audio.AggregatorOption{
		audio.WithTargetDuration(time.Duration(cfg.BufferTargetMS) * time.Millisecond),
		audio.WithOverlapDuration(time.Duration(cfg.OverlapMS) * time.Millisecond),
		audio.WithVADThreshold(cfg.VADThreshold),
	}
}

// runOrchestrator is the per-room orchestrator task (C9): it watches the
// room connection's track and message streams, spawning one pipeline per
// subscribed audio track and upserting language prefs from inbound
// language_prefs messages, until ctx is cancelled or the connection closes.
func (sm *SessionManager) runOrchestrator(ctx context.Context, rs *roomSession) {
	defer rs.wg.Done()

	tracks := rs.conn.Tracks()
	messages := rs.conn.Messages()
	var tracksWG sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			tracksWG.Wait()
			return

		case ev, ok := <-tracks:
			if !ok {
				tracksWG.Wait()
				return
			}
			switch ev.Type {
			case room.TrackSubscribed:
				tracksWG.Add(1)
				go func() {
					defer tracksWG.Done()
					rs.pipeline.Run(ctx, ev.ParticipantID, ev.Frames)
				}()
			case room.TrackUnsubscribed:
				// The pipeline goroutine observes the frame channel close
				// and flushes/exits on its own; nothing further to do here.
			}

		case msg, ok := <-messages:
			if !ok {
				tracksWG.Wait()
				return
			}
			sm.handleMessage(rs, msg)
		}
	}
}

// handleMessage processes one inbound data-channel message. Unknown topics
// and message types are ignored.
func (sm *SessionManager) handleMessage(rs *roomSession, msg room.DataMessage) {
	if msg.Topic != caption.CaptionsTopic {
		return
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		return
	}
	if envelope.Type != "language_prefs" {
		return
	}

	var prefsMsg caption.LanguagePrefsMessage
	if err := json.Unmarshal(msg.Payload, &prefsMsg); err != nil {
		sm.logger.Warn("session: malformed language_prefs message",
			"room", rs.info.RoomName, "error", err)
		return
	}
	if prefsMsg.ParticipantID == "" {
		return
	}

	rs.prefs.Upsert(prefsMsg.ParticipantID, caption.ParticipantPrefs{
		STTLanguage:    prefsMsg.STTLanguage,
		TargetLanguage: prefsMsg.TargetLanguage,
	})
	sm.logger.Debug("session: language prefs updated",
		"room", rs.info.RoomName, "participant", prefsMsg.ParticipantID,
		"sttLanguage", prefsMsg.STTLanguage, "targetLanguage", prefsMsg.TargetLanguage)
}
