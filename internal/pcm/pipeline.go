package pcm

import "voxlink/internal/domain"

// DefaultTargetRate is the sample rate the recognition service expects.
const DefaultTargetRate = 16000

// Pipeline runs resample, condition and encode for one frame.
type Pipeline struct {
	TargetRate  int
	Conditioner Conditioner
}

func NewPipeline(targetRate int, conditioner Conditioner) Pipeline {
	if targetRate <= 0 {
		targetRate = DefaultTargetRate
	}
	return Pipeline{TargetRate: targetRate, Conditioner: conditioner}
}

// Process converts one captured frame into a PCM chunk. The chunk's
// SampleRate is the rate its samples were actually produced at.
func (p Pipeline) Process(frame domain.AudioFrame) domain.PcmChunk {
	resampled := Resample(frame, p.TargetRate)
	conditioned := p.Conditioner.Condition(resampled.Samples)
	return domain.PcmChunk{
		Samples:    Encode(conditioned),
		SampleRate: resampled.SampleRate,
	}
}
