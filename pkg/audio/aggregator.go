package audio

import (
	"sync"
	"time"
)

// Default aggregation parameters, matching the external-interface defaults.
const (
	DefaultTargetDuration  = 1800 * time.Millisecond
	DefaultOverlapDuration = 300 * time.Millisecond
	DefaultVADThreshold    = 800.0
)

// bytesPerSample is fixed for PCM16.
const bytesPerSample = 2

// AggregatorOption configures an [Aggregator] at construction.
type AggregatorOption func(*Aggregator)

// WithTargetDuration sets the accumulated duration at which frames are
// combined into a window. Default [DefaultTargetDuration].
func WithTargetDuration(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.targetDuration = d }
}

// WithOverlapDuration sets the trailing-tail duration carried from one
// window into the next. Default [DefaultOverlapDuration].
func WithOverlapDuration(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.overlapDuration = d }
}

// WithVADThreshold sets the RMS floor below which an assembled window is
// dropped as silence/noise. Default [DefaultVADThreshold].
func WithVADThreshold(threshold float64) AggregatorOption {
	return func(a *Aggregator) { a.vadThreshold = threshold }
}

// Aggregator collects fixed-duration [AudioFrame] values for one subscribed
// track into target-size, overlap-prepended [AudioWindow] values, dropping
// muted or sub-threshold audio. One Aggregator is owned by exactly one
// per-speaker pipeline; it is not safe to share across tracks, though Push
// is internally synchronized.
type Aggregator struct {
	targetDuration  time.Duration
	overlapDuration time.Duration
	vadThreshold    float64

	mu          sync.Mutex
	sampleRate  int
	channels    int
	buf         []byte // samples accumulated for the in-progress window
	accumulated time.Duration
	prevTail    []byte // trailing overlap carried from the last emitted window
}

// NewAggregator creates an [Aggregator] with the given options applied over
// the package defaults.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		targetDuration:  DefaultTargetDuration,
		overlapDuration: DefaultOverlapDuration,
		vadThreshold:    DefaultVADThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Push feeds one frame into the aggregator. It returns a ready-to-transcribe
// [AudioWindow] and true once enough audio has accumulated and its energy
// clears the VAD threshold. It returns the zero value and false when the
// frame was muted, when the window is still accumulating, or when the
// combined window's RMS fell below the VAD threshold (silence is discarded,
// not queued). The third return value names why no window was emitted —
// "muted" or "vad" — and is empty both on emission and while still
// accumulating (not a drop, just not ready yet).
func (a *Aggregator) Push(f AudioFrame) (AudioWindow, bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if f.Muted {
		a.buf = nil
		a.prevTail = nil
		a.accumulated = 0
		return AudioWindow{}, false, "muted"
	}

	a.sampleRate = f.SampleRate
	a.channels = f.Channels
	a.buf = append(a.buf, f.Data...)
	a.accumulated += frameDuration(f)

	if a.accumulated < a.targetDuration {
		return AudioWindow{}, false, ""
	}

	combined := append(append([]byte(nil), a.prevTail...), a.buf...)
	a.buf = nil
	a.accumulated = 0

	tailBytes := a.overlapBytes()
	if tailBytes > len(combined) {
		tailBytes = len(combined)
	}
	a.prevTail = append([]byte(nil), combined[len(combined)-tailBytes:]...)

	rms := RMS(combined)
	if rms < a.vadThreshold {
		return AudioWindow{}, false, "vad"
	}

	return AudioWindow{
		PCM:        combined,
		SampleRate: a.sampleRate,
		Channels:   a.channels,
		EmittedAt:  time.Now(),
		RMS:        rms,
	}, true, ""
}

// overlapBytes returns the number of trailing bytes that make up
// overlapDuration of audio at the aggregator's current sample rate/channels.
// Must be called with mu held.
func (a *Aggregator) overlapBytes() int {
	bytesPerSec := a.sampleRate * a.channels * bytesPerSample
	return int(a.overlapDuration.Seconds() * float64(bytesPerSec))
}

// frameDuration returns f's duration, derived from its sample count; the
// frame's Timestamp is not used.
func frameDuration(f AudioFrame) time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	samples := len(f.Data) / bytesPerSample / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
