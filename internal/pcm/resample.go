package pcm

import (
	"math"

	"voxlink/internal/domain"
)

// Resample converts frame to targetRate by averaging consecutive windows of
// input samples. Frames already at targetRate are returned unchanged.
//
// For output index k the window is [round(k*ratio), round((k+1)*ratio))
// clipped to the input. An empty window that still starts inside the input
// (only possible when upsampling) is widened to one sample; an empty window
// past the end of the input yields 0.
func Resample(frame domain.AudioFrame, targetRate int) domain.AudioFrame {
	if targetRate <= 0 || frame.SampleRate <= 0 || frame.SampleRate == targetRate {
		return frame
	}

	n := len(frame.Samples)
	ratio := float64(frame.SampleRate) / float64(targetRate)
	outLen := int(math.Round(float64(n) / ratio))
	out := make([]float32, outLen)

	for k := 0; k < outLen; k++ {
		start := min(int(math.Round(float64(k)*ratio)), n)
		end := min(int(math.Round(float64(k+1)*ratio)), n)
		if end <= start {
			if start >= n {
				continue
			}
			end = start + 1
		}

		var sum float64
		for _, v := range frame.Samples[start:end] {
			sum += float64(v)
		}
		out[k] = float32(sum / float64(end-start))
	}

	return domain.AudioFrame{Samples: out, SampleRate: targetRate}
}
