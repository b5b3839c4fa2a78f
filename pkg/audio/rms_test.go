package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(s))
	}
	return buf
}

func TestRMSEmpty(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
}

func TestRMSConstant(t *testing.T) {
	buf := pcm16(1000, 1000, 1000, 1000)
	if got := RMS(buf); math.Abs(got-1000) > 1e-9 {
		t.Errorf("RMS = %v, want 1000", got)
	}
}

func TestRMSMixedSign(t *testing.T) {
	buf := pcm16(3, -4)
	// sqrt((9+16)/2) = sqrt(12.5)
	want := math.Sqrt(12.5)
	if got := RMS(buf); math.Abs(got-want) > 1e-9 {
		t.Errorf("RMS = %v, want %v", got, want)
	}
}
