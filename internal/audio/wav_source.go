package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voxlink/internal/domain"
	"voxlink/internal/ports"
)

const wavFormatPCM = 1

// WAVSource plays an integer PCM WAV file as a capture source. Multi-channel
// files are averaged down to mono.
type WAVSource struct {
	path     string
	realtime bool
}

// NewWAVSource returns a source for path. With realtime set, frames are
// released no faster than their playback duration.
func NewWAVSource(path string, realtime bool) *WAVSource {
	return &WAVSource{path: path, realtime: realtime}
}

// Start opens and validates the file. The capture config is ignored; the
// file header decides the sample rate.
func (s *WAVSource) Start(ctx context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s is not a valid wav file", domain.ErrDecodeFailed, s.path)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		_ = file.Close()
		return nil, fmt.Errorf("%w: unsupported wav encoding %d", domain.ErrDecodeFailed, decoder.WavAudioFormat)
	}
	if err := decoder.FwdToPCM(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}

	format := decoder.Format()
	if format == nil || format.NumChannels <= 0 || format.SampleRate <= 0 {
		_ = file.Close()
		return nil, fmt.Errorf("%w: missing wav format", domain.ErrDecodeFailed)
	}

	return &wavSession{
		file:     file,
		decoder:  decoder,
		format:   format,
		bitDepth: int(decoder.BitDepth),
		realtime: s.realtime,
		done:     make(chan struct{}),
	}, nil
}

type wavSession struct {
	mu      sync.Mutex
	file    *os.File
	decoder *wav.Decoder
	format  *goaudio.Format

	bitDepth int
	realtime bool

	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

func (s *wavSession) ReadFrame(maxSamples int) (domain.AudioFrame, error) {
	if maxSamples <= 0 {
		maxSamples = 1
	}

	frame, err := s.decodeFrame(maxSamples)
	if err != nil || len(frame.Samples) == 0 {
		return frame, err
	}

	if s.realtime {
		wait := time.Duration(len(frame.Samples)) * time.Second / time.Duration(frame.SampleRate)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.done:
			timer.Stop()
			return domain.AudioFrame{}, io.EOF
		}
	}
	return frame, nil
}

func (s *wavSession) decodeFrame(maxSamples int) (domain.AudioFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return domain.AudioFrame{}, io.EOF
	default:
	}

	channels := s.format.NumChannels
	buf := &goaudio.IntBuffer{
		Format:         s.format,
		Data:           make([]int, maxSamples*channels),
		SourceBitDepth: s.bitDepth,
	}
	n, err := s.decoder.PCMBuffer(buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.AudioFrame{}, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}
	if n == 0 {
		return domain.AudioFrame{}, io.EOF
	}

	frames := n / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += normalizeInt(buf.Data[i*channels+ch], s.bitDepth)
		}
		samples[i] = sum / float32(channels)
	}

	return domain.AudioFrame{Samples: samples, SampleRate: s.format.SampleRate}, nil
}

func (s *wavSession) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.stopErr = err
		}
	})
	return s.stopErr
}
