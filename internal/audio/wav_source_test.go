package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/matryer/is"

	"voxlink/internal/domain"
	"voxlink/internal/ports"
)

func TestWAVSourceMono16(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	path := writeWAV(t, 16000, 1, 16, []int{0, 16384, -16384, 32767, -32768})
	session, err := NewWAVSource(path, false).Start(context.Background(), ports.AudioConfig{})
	is.NoErr(err)
	defer session.Stop()

	frame, err := session.ReadFrame(3)
	is.NoErr(err)
	is.Equal(frame.SampleRate, 16000)
	is.Equal(frame.Samples, []float32{0, 0.5, -0.5})

	frame, err = session.ReadFrame(3)
	is.NoErr(err)
	is.Equal(len(frame.Samples), 2)
	is.Equal(frame.Samples[1], float32(-1))

	_, err = session.ReadFrame(3)
	is.True(errors.Is(err, io.EOF))
}

func TestWAVSourceStereoDownmix(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	path := writeWAV(t, 8000, 2, 16, []int{16384, 0, -16384, -16384})
	session, err := NewWAVSource(path, false).Start(context.Background(), ports.AudioConfig{})
	is.NoErr(err)
	defer session.Stop()

	frame, err := session.ReadFrame(8)
	is.NoErr(err)
	is.Equal(frame.SampleRate, 8000)
	is.Equal(frame.Samples, []float32{0.25, -0.5})
}

func TestWAVSourceStopInterruptsPacing(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	path := writeWAV(t, 8000, 1, 16, make([]int, 8000))
	session, err := NewWAVSource(path, true).Start(context.Background(), ports.AudioConfig{})
	is.NoErr(err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = session.Stop()
	}()

	started := time.Now()
	_, err = session.ReadFrame(8000)
	is.True(errors.Is(err, io.EOF))
	is.True(time.Since(started) < 900*time.Millisecond)

	_, err = session.ReadFrame(10)
	is.True(errors.Is(err, io.EOF))
}

func TestWAVSourceInvalidFile(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "noise.wav")
	is.NoErr(os.WriteFile(path, []byte("definitely not riff data"), 0o600))

	_, err := NewWAVSource(path, false).Start(context.Background(), ports.AudioConfig{})
	is.True(errors.Is(err, domain.ErrDecodeFailed))
}

func TestWAVSourceMissingFile(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	_, err := NewWAVSource(filepath.Join(t.TempDir(), "absent.wav"), false).Start(context.Background(), ports.AudioConfig{})
	is.True(errors.Is(err, domain.ErrDecodeFailed))
}

func TestNormalizeIntEightBit(t *testing.T) {
	t.Parallel()
	is := is.New(t)

	is.Equal(normalizeInt(128, 8), float32(0))
	is.Equal(normalizeInt(0, 8), float32(-1))
	is.Equal(normalizeInt(192, 8), float32(0.5))
}

func writeWAV(t *testing.T, rate, channels, bitDepth int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	encoder := wav.NewEncoder(file, rate, bitDepth, channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := encoder.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}
