package audio

import (
	"encoding/binary"
	"math"
)

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer, expressed in the same units as PCM sample values (0–32767).
// Returns 0 for buffers shorter than one sample. Used both as the voice-
// activity gate in the frame aggregator and as the high-energy classifier in
// the filter gate.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
