package audio

import (
	"encoding/binary"
	"math"
)

const bytesPerFloat = 4

func decodeFloat32LE(data []byte) []float32 {
	out := make([]float32, len(data)/bytesPerFloat)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*bytesPerFloat:]))
	}
	return out
}

// normalizeInt maps an integer PCM sample of the given bit depth to [-1, 1).
// 8-bit WAV samples are unsigned and centered on 128.
func normalizeInt(v int, bitDepth int) float32 {
	if bitDepth == 8 {
		return float32(v-128) / 128
	}
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	return float32(float64(v) / float64(int64(1)<<(bitDepth-1)))
}
