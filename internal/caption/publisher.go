package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oakfield-labs/captionrelay/internal/observe"
	"github.com/oakfield-labs/captionrelay/pkg/room"
)

// CaptionsTopic is the reliable data-channel topic every CaptionRecord is
// published on.
const CaptionsTopic = "captions"

// ChatTopic carries the optional human-readable chat mirror of a caption
// record, sent only when chat mirroring is enabled.
const ChatTopic = "chat"

// RoomPublisher implements [Publisher] (C8): it JSON-encodes every
// CaptionRecord and publishes it, fire-and-forget, on the room's "captions"
// topic. When chat mirroring is enabled, it additionally sends a
// human-readable line on the "chat" topic.
type RoomPublisher struct {
	conn     room.Connection
	sendChat bool
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// PublisherOption configures a [RoomPublisher] at construction.
type PublisherOption func(*RoomPublisher)

// WithChatMirror enables the "[Transcript] ..."/"[Translation] ..." chat
// line alongside every caption record, matching the AGENT_SEND_CHAT config
// flag.
func WithChatMirror(enabled bool) PublisherOption {
	return func(p *RoomPublisher) { p.sendChat = enabled }
}

// WithPublisherMetrics records a captions-published counter increment (by
// record type) for every successful publish.
func WithPublisherMetrics(m *observe.Metrics) PublisherOption {
	return func(p *RoomPublisher) { p.metrics = m }
}

// NewRoomPublisher creates a [RoomPublisher] over conn.
func NewRoomPublisher(conn room.Connection, opts ...PublisherOption) *RoomPublisher {
	p := &RoomPublisher{conn: conn, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish implements [Publisher]. Marshal or publish failures are logged
// and dropped; they never propagate to the caller, per the fire-and-forget
// publication policy.
func (p *RoomPublisher) Publish(ctx context.Context, rec CaptionRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		p.logger.Error("publisher: marshal caption record failed",
			"speaker", rec.Speaker, "sentenceId", rec.SentenceID, "error", err)
		return
	}

	if err := p.conn.Publish(ctx, CaptionsTopic, payload); err != nil {
		p.logger.Warn("publisher: publish caption record failed",
			"speaker", rec.Speaker, "sentenceId", rec.SentenceID, "error", err)
	} else if p.metrics != nil {
		p.metrics.RecordCaptionPublished(ctx, rec.Type)
	}

	if !p.sendChat {
		return
	}
	if line, ok := chatLine(rec); ok {
		if err := p.conn.Publish(ctx, ChatTopic, []byte(line)); err != nil {
			p.logger.Warn("publisher: chat mirror publish failed",
				"speaker", rec.Speaker, "sentenceId", rec.SentenceID, "error", err)
		}
	}
}

// chatLine renders rec as a human-readable chat mirror line, or reports
// false when rec's type has no chat representation.
func chatLine(rec CaptionRecord) (string, bool) {
	switch rec.Type {
	case RecordTypeTranscription:
		return fmt.Sprintf("[Transcript] %s: %s", rec.Speaker, rec.Text), true
	case RecordTypeTranslation:
		return fmt.Sprintf("[Translation] %s: %s", rec.Speaker, rec.TranslatedText), true
	default:
		return "", false
	}
}

var _ Publisher = (*RoomPublisher)(nil)
