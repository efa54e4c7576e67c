package pcm

import (
	"math"
	"testing"

	"github.com/matryer/is"
)

func TestEncodeAsymmetricScaling(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	in := []float32{0, 1, -1, 2, -2, 0.5, -0.5, float32(math.NaN())}
	got := Encode(in)
	is.Equal(got, []int16{0, 32767, -32768, 32767, -32768, 16383, -16384, 0})
}

func TestEncodeMagnitudeAndSign(t *testing.T) {
	t.Parallel()

	for v := -1.5; v <= 1.5; v += 0.01 {
		out := Encode([]float32{float32(v)})[0]
		if out > 32767 || out < -32768 {
			t.Fatalf("encode(%f) out of range: %d", v, out)
		}
		if math.Abs(v) < 1.0/32767 {
			continue
		}
		if (v < 0) != (out < 0) {
			t.Fatalf("encode(%f) flipped sign: %d", v, out)
		}
	}
	if got := Encode([]float32{0})[0]; got != 0 {
		t.Fatalf("expected zero to encode as zero, got %d", got)
	}
}

func TestConditionerGateAndGain(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	c := Conditioner{Gain: 2, NoiseThreshold: 0.1}
	got := c.Condition([]float32{0.05, -0.05, 0.3, 0.6, -0.7})
	is.Equal(got, []float32{0, 0, 0.6, 1, -1})
}

func TestConditionerZeroValueIsNoop(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	in := []float32{0, 0.25, -0.25, 0.99}
	is.Equal(Conditioner{}.Condition(in), in)
}

func TestPipelineProcess(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	samples := make([]float32, 3000)
	for i := range samples {
		samples[i] = 0.5
	}

	p := NewPipeline(0, Conditioner{Gain: 1})
	chunk := p.Process(domainFrame(samples, 48000))

	is.Equal(chunk.SampleRate, 16000) // chunk carries the resampled rate
	is.Equal(len(chunk.Samples), 1000)
	for _, s := range chunk.Samples {
		is.Equal(s, int16(16383))
	}
}

func TestPipelineKeepsSourceRateWhenAlreadyCanonical(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	chunk := NewPipeline(16000, Conditioner{}).Process(domainFrame([]float32{1, -1}, 16000))
	is.Equal(chunk.SampleRate, 16000)
	is.Equal(chunk.Samples, []int16{32767, -32768})
}
