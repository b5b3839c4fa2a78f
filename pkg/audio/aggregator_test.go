package audio

import (
	"testing"
	"time"
)

// loudFrame returns a 20ms mono PCM16 frame at a constant amplitude high
// enough to clear the default VAD threshold.
func loudFrame(amplitude int16) AudioFrame {
	const sampleRate = 16000
	const channels = 1
	n := sampleRate * 20 / 1000 // 20ms worth of samples
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return AudioFrame{
		Data:       int16sToPCM(samples),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

func int16sToPCM(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(uint16(s))
		buf[i*2+1] = byte(uint16(s) >> 8)
	}
	return buf
}

func TestAggregatorEmitsOnceTargetReached(t *testing.T) {
	a := NewAggregator(
		WithTargetDuration(100*time.Millisecond),
		WithOverlapDuration(20*time.Millisecond),
		WithVADThreshold(500),
	)

	var win AudioWindow
	var emitted bool
	for i := 0; i < 5; i++ { // 5 * 20ms = 100ms
		win, emitted, _ = a.Push(loudFrame(2000))
	}
	if !emitted {
		t.Fatal("expected a window to be emitted once target duration reached")
	}
	if win.RMS < 500 {
		t.Errorf("window RMS = %v, want >= 500", win.RMS)
	}
}

func TestAggregatorDoesNotEmitBelowTarget(t *testing.T) {
	a := NewAggregator(WithTargetDuration(200 * time.Millisecond))
	_, emitted, reason := a.Push(loudFrame(2000))
	if emitted {
		t.Fatal("did not expect emission before target duration reached")
	}
	if reason != "" {
		t.Errorf("reason = %q, want empty (still accumulating is not a drop)", reason)
	}
}

func TestAggregatorDropsBelowVADThreshold(t *testing.T) {
	a := NewAggregator(
		WithTargetDuration(40*time.Millisecond),
		WithVADThreshold(1000),
	)
	a.Push(loudFrame(10))
	_, emitted, reason := a.Push(loudFrame(10))
	if emitted {
		t.Fatal("window below VAD threshold should not be emitted")
	}
	if reason != "vad" {
		t.Errorf("reason = %q, want %q", reason, "vad")
	}
}

func TestAggregatorMuteDiscardsAccumulated(t *testing.T) {
	a := NewAggregator(WithTargetDuration(100 * time.Millisecond))
	a.Push(loudFrame(2000))
	a.Push(loudFrame(2000))

	muted := loudFrame(2000)
	muted.Muted = true
	if _, emitted, reason := a.Push(muted); emitted || reason != "muted" {
		t.Fatalf("a muted frame must never emit, got emitted=%v reason=%q", emitted, reason)
	}

	// The frames accumulated before the mute must have been discarded: three
	// more 20ms frames (60ms) is still short of the 100ms target.
	for i := 0; i < 3; i++ {
		if _, emitted, _ := a.Push(loudFrame(2000)); emitted {
			t.Fatalf("unexpected emission at frame %d after mute reset accumulation", i)
		}
	}
}

func TestAggregatorPrependsPreviousTail(t *testing.T) {
	a := NewAggregator(
		WithTargetDuration(40*time.Millisecond),
		WithOverlapDuration(20*time.Millisecond),
		WithVADThreshold(0),
	)

	a.Push(loudFrame(100))
	win1, emitted, _ := a.Push(loudFrame(100))
	if !emitted {
		t.Fatal("expected first window emission")
	}
	firstLen := len(win1.PCM)

	a.Push(loudFrame(100))
	win2, emitted, _ := a.Push(loudFrame(100))
	if !emitted {
		t.Fatal("expected second window emission")
	}

	// win2 should be longer than the raw 40ms of new audio because it
	// carries win1's trailing 20ms overlap.
	if len(win2.PCM) <= firstLen {
		t.Errorf("expected second window to include prepended tail, got %d bytes (first window was %d)",
			len(win2.PCM), firstLen)
	}
}
