package pcm

// Conditioner applies a fixed gain and a noise gate before quantization.
// The zero value is treated as gain 1 with the gate disabled.
type Conditioner struct {
	Gain           float64
	NoiseThreshold float64
}

// Condition gates samples quieter than NoiseThreshold to silence and
// amplifies the rest by Gain, clamped to [-1, 1].
func (c Conditioner) Condition(samples []float32) []float32 {
	gain := c.Gain
	if gain <= 0 {
		gain = 1
	}

	out := make([]float32, len(samples))
	for i, v := range samples {
		if abs(float64(v)) < c.NoiseThreshold {
			continue
		}
		out[i] = float32(clamp(float64(v)*gain, -1, 1))
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
