// Package mock provides in-memory implementations of [room.Platform] and
// [room.Connection] for unit tests, mirroring the style of the upstream
// pkg/audio/mock package: exported result fields, recorded call arguments,
// and Emit* helpers to simulate remote-side events.
package mock

import (
	"context"
	"sync"

	"github.com/oakfield-labs/captionrelay/pkg/audio"
	"github.com/oakfield-labs/captionrelay/pkg/room"
)

// Connection is a mock implementation of [room.Connection].
type Connection struct {
	mu sync.Mutex

	tracks   chan room.TrackEvent
	messages chan room.DataMessage
	left     bool

	// PublishError is returned by every call to Publish.
	PublishError error

	// PublishedCalls records every Publish invocation in order.
	PublishedCalls []PublishCall

	// LeaveError is returned by Leave.
	LeaveError error
}

// PublishCall records the arguments of one Publish invocation.
type PublishCall struct {
	Topic   string
	Payload []byte
}

// NewConnection creates a ready-to-use mock [room.Connection]. Buffer sizes
// are generous so tests can emit events without a concurrent reader.
func NewConnection() *Connection {
	return &Connection{
		tracks:   make(chan room.TrackEvent, 32),
		messages: make(chan room.DataMessage, 32),
	}
}

// Tracks implements [room.Connection].
func (c *Connection) Tracks() <-chan room.TrackEvent { return c.tracks }

// Messages implements [room.Connection].
func (c *Connection) Messages() <-chan room.DataMessage { return c.messages }

// Publish implements [room.Connection]. Records the call and returns
// PublishError.
func (c *Connection) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PublishedCalls = append(c.PublishedCalls, PublishCall{Topic: topic, Payload: payload})
	return c.PublishError
}

// Leave implements [room.Connection]. Closes the Tracks and Messages
// channels exactly once.
func (c *Connection) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.left {
		return nil
	}
	c.left = true
	close(c.tracks)
	close(c.messages)
	return c.LeaveError
}

// EmitTrackSubscribed simulates a remote participant's audio track becoming
// available, and returns the write side of the frame channel so the test can
// feed frames into the pipeline.
func (c *Connection) EmitTrackSubscribed(participantID string) chan<- audio.AudioFrame {
	frames := make(chan audio.AudioFrame, 64)
	c.tracks <- room.TrackEvent{
		Type:          room.TrackSubscribed,
		ParticipantID: participantID,
		Frames:        frames,
	}
	return frames
}

// EmitTrackUnsubscribed simulates a remote track going away.
func (c *Connection) EmitTrackUnsubscribed(participantID string) {
	c.tracks <- room.TrackEvent{Type: room.TrackUnsubscribed, ParticipantID: participantID}
}

// EmitMessage simulates an inbound data-channel message from another
// participant.
func (c *Connection) EmitMessage(msg room.DataMessage) {
	c.messages <- msg
}

// Platform is a mock implementation of [room.Platform].
type Platform struct {
	mu sync.Mutex

	// JoinResult is returned by Join.
	JoinResult room.Connection

	// JoinError is returned by Join.
	JoinError error

	// JoinCalls records every roomName passed to Join.
	JoinCalls []string
}

// Join implements [room.Platform]. Records the call and returns JoinResult/
// JoinError.
func (p *Platform) Join(_ context.Context, roomName string) (room.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.JoinCalls = append(p.JoinCalls, roomName)
	return p.JoinResult, p.JoinError
}
