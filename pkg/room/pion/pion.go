// Package pion implements [room.Platform] on top of a real WebRTC peer
// connection (github.com/pion/webrtc/v4). It joins a conferencing room as a
// participant, subscribes to every remote audio track, decodes Opus to
// PCM16, and exposes a reliable "captions" data channel for publish/receive.
//
// Signaling (SDP offer/answer and ICE candidate exchange) runs over a
// websocket to an external signaling service, mirroring the shape of the
// upstream audio/webrtc package's SignalingServer but using a bidirectional
// transport instead of bare HTTP POST, since trickle ICE needs a channel the
// room side can push candidates down as well.
package pion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"layeh.com/gopus"

	"github.com/oakfield-labs/captionrelay/pkg/audio"
	"github.com/oakfield-labs/captionrelay/pkg/room"
)

const (
	opusSampleRate = 48000
	opusChannels   = 2
	opusFrameSize  = opusSampleRate * 20 / 1000 // 960 samples per 20ms frame

	dataChannelLabel = "captions"
)

// Option configures a [Platform].
type Option func(*Platform)

// WithSTUNServers sets the STUN server URLs used during ICE negotiation.
// Defaults to ["stun:stun.l.google.com:19302"].
func WithSTUNServers(servers ...string) Option {
	return func(p *Platform) { p.stunServers = servers }
}

// WithIdentityMetadata attaches metadata to every room this Platform joins,
// identifying the local participant to the signaling service (e.g. {"role":
// "agent", "subtype": "captions"} for a captioning agent). The same
// metadata is sent on every Join call, since it describes the process, not
// the room.
func WithIdentityMetadata(meta map[string]string) Option {
	return func(p *Platform) { p.identityMetadata = meta }
}

// Platform implements [room.Platform] using a real pion/webrtc peer
// connection per room, signaled over a websocket to signalingURL.
type Platform struct {
	signalingURL     string
	stunServers      []string
	identityMetadata map[string]string
}

// New creates a Platform that signals against signalingURL (e.g.
// "wss://conf.example.com/signal").
func New(signalingURL string, opts ...Option) *Platform {
	p := &Platform{
		signalingURL: signalingURL,
		stunServers:  []string{"stun:stun.l.google.com:19302"},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// signalEnvelope is the wire shape exchanged with the signaling service.
type signalEnvelope struct {
	Type      string                  `json:"type"` // "offer", "answer", "ice"
	RoomName  string                  `json:"roomName,omitempty"`
	SDP       string                  `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Metadata  map[string]string       `json:"metadata,omitempty"`
}

// Join implements [room.Platform]. It dials the signaling websocket,
// performs the offer/answer exchange and trickle ICE, then returns a live
// [Connection] once ICE reaches the connected state. It returns an error
// if ctx is done or 30 seconds pass first.
func (p *Platform) Join(ctx context.Context, roomName string) (room.Connection, error) {
	wsConn, _, err := websocket.Dial(ctx, p.signalingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("pion: dial signaling: %w", err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: p.stunServers}},
	})
	if err != nil {
		wsConn.Close(websocket.StatusInternalError, "peer connection setup failed")
		return nil, fmt.Errorf("pion: new peer connection: %w", err)
	}

	dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		pc.Close()
		wsConn.Close(websocket.StatusInternalError, "data channel setup failed")
		return nil, fmt.Errorf("pion: create data channel: %w", err)
	}

	c := newConnection(ctx, roomName, pc, dc, wsConn)

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		_ = wsjson.Write(context.Background(), wsConn, signalEnvelope{Type: "ice", Candidate: &init})
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		c.Leave()
		return nil, fmt.Errorf("pion: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		c.Leave()
		return nil, fmt.Errorf("pion: set local description: %w", err)
	}

	if err := wsjson.Write(ctx, wsConn, signalEnvelope{Type: "offer", RoomName: roomName, SDP: offer.SDP, Metadata: p.identityMetadata}); err != nil {
		c.Leave()
		return nil, fmt.Errorf("pion: send offer: %w", err)
	}

	connected := make(chan struct{})
	var once sync.Once
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		if state == webrtc.ICEConnectionStateConnected {
			once.Do(func() { close(connected) })
		}
	})

	go c.readSignaling()

	select {
	case <-connected:
	case <-ctx.Done():
		c.Leave()
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		c.Leave()
		return nil, fmt.Errorf("pion: timed out waiting for ICE connection in room %q", roomName)
	}

	return c, nil
}

// Connection implements [room.Connection] over a single pion peer
// connection. Each remote audio track gets its own opusDecoder so decoder
// state is never shared across speakers.
type Connection struct {
	roomName string
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	ws       *websocket.Conn
	baseCtx  context.Context

	mu       sync.Mutex
	left     bool
	done     chan struct{}
	tracks   chan room.TrackEvent
	messages chan room.DataMessage
}

func newConnection(ctx context.Context, roomName string, pc *webrtc.PeerConnection, dc *webrtc.DataChannel, ws *websocket.Conn) *Connection {
	c := &Connection{
		roomName: roomName,
		pc:       pc,
		dc:       dc,
		ws:       ws,
		baseCtx:  context.WithoutCancel(ctx),
		done:     make(chan struct{}),
		tracks:   make(chan room.TrackEvent, 16),
		messages: make(chan room.DataMessage, 64),
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		c.subscribeTrack(track)
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		var env struct {
			Topic string `json:"topic"`
			From  string `json:"from"`
		}
		_ = json.Unmarshal(msg.Data, &env)
		select {
		case c.messages <- room.DataMessage{Topic: env.Topic, ParticipantID: env.From, Payload: msg.Data}:
		case <-c.done:
		default:
			slog.Warn("pion: inbound message channel full, dropping", "room", roomName)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			c.Leave()
		}
	})

	return c
}

// subscribeTrack spawns a goroutine that reads RTP packets from track,
// decodes Opus to PCM16 with a decoder private to this track, and publishes
// a TrackSubscribed event followed by a stream of AudioFrame values.
func (c *Connection) subscribeTrack(track *webrtc.TrackRemote) {
	participantID := track.StreamID()
	frames := make(chan audio.AudioFrame, 64)

	select {
	case c.tracks <- room.TrackEvent{Type: room.TrackSubscribed, ParticipantID: participantID, Frames: frames}:
	case <-c.done:
		return
	default:
		slog.Warn("pion: track event channel full, dropping subscription", "participant", participantID)
		return
	}

	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		slog.Error("pion: create opus decoder", "participant", participantID, "err", err)
		close(frames)
		return
	}

	go func() {
		defer close(frames)
		defer func() {
			select {
			case c.tracks <- room.TrackEvent{Type: room.TrackUnsubscribed, ParticipantID: participantID}:
			case <-c.done:
			default:
			}
		}()

		start := time.Now()
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				return
			}
			pcm, err := decodeOpusPacket(dec, pkt)
			if err != nil {
				slog.Debug("pion: opus decode error, dropping packet", "participant", participantID, "err", err)
				continue
			}
			frame := audio.AudioFrame{
				Data:       pcm,
				SampleRate: opusSampleRate,
				Channels:   opusChannels,
				Timestamp:  time.Since(start),
			}
			select {
			case frames <- frame:
			case <-c.baseCtx.Done():
				return
			case <-c.done:
				return
			}
		}
	}()
}

// decodeOpusPacket decodes a single RTP packet's Opus payload into
// little-endian PCM16 bytes.
func decodeOpusPacket(dec *gopus.Decoder, pkt *rtp.Packet) ([]byte, error) {
	samples, err := dec.Decode(pkt.Payload, opusFrameSize, false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out, nil
}

// readSignaling processes the answer and trickled ICE candidates that the
// signaling service relays back to us, until the websocket closes.
func (c *Connection) readSignaling() {
	for {
		var env signalEnvelope
		if err := wsjson.Read(c.baseCtx, c.ws, &env); err != nil {
			return
		}
		switch env.Type {
		case "answer":
			_ = c.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer,
				SDP:  env.SDP,
			})
		case "ice":
			if env.Candidate != nil {
				_ = c.pc.AddICECandidate(*env.Candidate)
			}
		}
	}
}

// Tracks implements [room.Connection].
func (c *Connection) Tracks() <-chan room.TrackEvent { return c.tracks }

// Messages implements [room.Connection].
func (c *Connection) Messages() <-chan room.DataMessage { return c.messages }

// Publish implements [room.Connection]. Fire-and-forget: data channel send
// failures are returned for the caller to log, never panic the pipeline.
func (c *Connection) Publish(_ context.Context, topic string, payload []byte) error {
	env := struct {
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload"`
	}{Topic: topic, Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("pion: marshal publish envelope: %w", err)
	}
	if err := c.dc.Send(b); err != nil {
		return fmt.Errorf("pion: data channel send: %w", err)
	}
	return nil
}

// Leave implements [room.Connection]. Safe to call more than once.
func (c *Connection) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.left {
		return nil
	}
	c.left = true

	close(c.done)
	close(c.tracks)
	close(c.messages)

	var errs []error
	if err := c.pc.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ws.Close(websocket.StatusNormalClosure, "leaving room"); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("pion: leave room %q: %v", c.roomName, errs)
}
