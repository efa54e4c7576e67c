package pcm

import "voxlink/internal/domain"

func domainFrame(samples []float32, rate int) domain.AudioFrame {
	return domain.AudioFrame{Samples: samples, SampleRate: rate}
}
