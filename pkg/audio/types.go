// Package audio holds the audio primitives shared across the capture,
// windowing, and signal-analysis stages of the captioning pipeline.
package audio

import "time"

// AudioFrame is a single fixed-duration chunk of PCM16 audio delivered by the
// conferencing layer for one remote track. Frames are immutable once
// received; the aggregator only ever appends their Data to a window buffer.
type AudioFrame struct {
	// Data holds little-endian signed 16-bit PCM samples.
	Data []byte

	// SampleRate in Hz (e.g., 48000 for a WebRTC Opus track decoded to PCM).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo. The aggregator works on whatever
	// channel count the track delivers; STT providers generally expect mono.
	Channels int

	// Timestamp marks when this frame was captured, relative to track start.
	Timestamp time.Duration

	// Muted reflects the publishing participant's client-reported mute state
	// for this frame; the aggregator discards accumulated audio while set.
	Muted bool
}

// AudioWindow is a target-sized, overlap-prepended PCM16 buffer ready to be
// encoded (see [EncodeWAV]) and submitted to an STT provider. It lives only
// as long as it takes to transcribe; the aggregator that produced it does
// not retain a reference once emitted.
type AudioWindow struct {
	// PCM holds little-endian signed 16-bit samples: the previous window's
	// trailing overlap followed by newly accumulated frames.
	PCM []byte

	SampleRate int
	Channels   int

	// EmittedAt is the wall-clock time the window was assembled.
	EmittedAt time.Time

	// RMS is the root-mean-square energy of PCM, computed once at emission
	// so downstream stages (the filter gate) don't recompute it.
	RMS float64
}
