// Package room defines the conferencing SDK abstraction the session
// orchestrator builds on: joining a room, subscribing to remote audio
// tracks, and publishing/receiving data-channel messages on a topic.
//
// Implementations wrap provider-specific transports (pkg/room/pion for a
// real WebRTC room, pkg/room/mock for tests). The interfaces are
// intentionally narrow so the pipeline stays decoupled from transport
// details, mirroring how the upstream audio.Platform/Connection pair
// decouples NPC audio from Discord.
package room

import (
	"context"

	"github.com/oakfield-labs/captionrelay/pkg/audio"
)

// TrackEventType classifies audio-track lifecycle events emitted by a
// [Connection].
type TrackEventType int

const (
	// TrackSubscribed is emitted when a remote participant's audio track
	// becomes available for subscription.
	TrackSubscribed TrackEventType = iota

	// TrackUnsubscribed is emitted when a remote track stops (participant
	// left, or stopped publishing audio).
	TrackUnsubscribed
)

// TrackEvent describes a remote-track lifecycle change.
type TrackEvent struct {
	Type TrackEventType

	// ParticipantID is the conferencing layer's stable identity for the
	// remote participant that owns the track. It is used as the spec's
	// opaque SpeakerId.
	ParticipantID string

	// Frames delivers decoded PCM16 audio for this track. Populated only on
	// TrackSubscribed; nil on TrackUnsubscribed.
	Frames <-chan audio.AudioFrame
}

// DataMessage is an inbound or outbound payload on a data-channel topic.
type DataMessage struct {
	Topic         string
	ParticipantID string // sender, for inbound messages; ignored for outbound
	Payload       []byte
}

// Connection represents an active room membership. It is obtained from
// [Platform.Join] and remains valid until [Connection.Leave] is called or
// the room is torn down by the remote side.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// Tracks returns a channel of [TrackEvent] values describing remote
	// audio tracks becoming available or going away. The channel is closed
	// when the connection leaves the room.
	Tracks() <-chan TrackEvent

	// Publish sends payload as a reliable data-channel message on topic to
	// every other participant in the room. Publication is fire-and-forget:
	// a transport failure is returned to the caller to log, never panics,
	// and never blocks the pipeline.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Messages returns a channel of inbound data-channel messages from
	// other participants, across all topics. Callers filter by
	// [DataMessage.Topic]. The channel is closed when the connection leaves.
	Messages() <-chan DataMessage

	// Leave tears down the room connection: closes the data channel,
	// unsubscribes from every track, and closes the Tracks/Messages
	// channels. Safe to call more than once; subsequent calls are no-ops.
	Leave() error
}

// Platform is the entry point for a conferencing SDK. Implementations wrap
// provider-specific signaling and transport (e.g., pion/webrtc) behind a
// uniform [Connection].
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Join connects to the room identified by roomName as the agent's own
	// participant, with metadata identifying it as a captioning agent. The
	// supplied ctx governs the join handshake only; once returned, the
	// Connection lives until Leave is called explicitly.
	Join(ctx context.Context, roomName string) (Connection, error)
}
