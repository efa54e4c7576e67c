package pcm

import "math"

const (
	negativeScale = 0x8000
	positiveScale = 0x7FFF
)

// Encode quantizes normalized samples to signed 16-bit PCM. Negative values
// scale by 32768 and non-negative values by 32767 so both ends of the int16
// range are reachable without overflow. NaN encodes as silence.
func Encode(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) {
			continue
		}
		v = clamp(v, -1, 1)
		if v < 0 {
			out[i] = int16(v * negativeScale)
		} else {
			out[i] = int16(v * positiveScale)
		}
	}
	return out
}
