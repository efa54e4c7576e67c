package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"voxlink/internal/domain"
	"voxlink/internal/ports"
)

// FFMPEGCapture streams mono float32 microphone audio using ffmpeg.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "f32le",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create ffmpeg stdout pipe: %v", domain.ErrCaptureUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", domain.ErrCaptureUnavailable, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%w: ffmpeg exited before capture started: %v: %s", domain.ErrCaptureUnavailable, err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, fmt.Errorf("%w: ffmpeg exited before capture started", domain.ErrCaptureUnavailable)
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdout:     stdout,
		stderr:     &stderr,
		process:    cmd.Process,
		waitErr:    waitErr,
		sampleRate: cfg.SampleRate,
	}, nil
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	sampleRate int
	stopped    atomic.Bool

	waitMu  sync.Mutex
	exited  bool
	exitErr error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Live() bool { return true }

// ReadFrame blocks until maxSamples samples have been captured. A short
// final frame is returned together with io.EOF.
func (s *ffmpegSession) ReadFrame(maxSamples int) (domain.AudioFrame, error) {
	if maxSamples <= 0 {
		maxSamples = 1
	}

	buf := make([]byte, maxSamples*bytesPerFloat)
	n, err := io.ReadFull(s.stdout, buf)
	frame := domain.AudioFrame{
		Samples:    decodeFloat32LE(buf[:n-n%bytesPerFloat]),
		SampleRate: s.sampleRate,
	}

	switch {
	case err == nil:
		return frame, nil
	case s.stopped.Load():
		return frame, io.EOF
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return frame, s.endOfStream()
	default:
		return frame, fmt.Errorf("%w: %v", domain.ErrCaptureUnavailable, err)
	}
}

// endOfStream maps ffmpeg closing its output to io.EOF for a clean exit,
// or to a capture error when the process failed.
func (s *ffmpegSession) endOfStream() error {
	exited, err := s.waitExit(time.Second)
	if s.stopped.Load() {
		return io.EOF
	}
	if !exited {
		return fmt.Errorf("%w: ffmpeg closed its output without exiting", domain.ErrCaptureUnavailable)
	}
	if err != nil {
		return fmt.Errorf("%w: ffmpeg exited: %v: %s", domain.ErrCaptureUnavailable, err, stringsTrimSpaceSafe(s.stderr.String()))
	}
	return io.EOF
}

// waitExit waits up to timeout for the process to exit. A negative timeout
// waits forever. The exit status is kept for later callers.
func (s *ffmpegSession) waitExit(timeout time.Duration) (bool, error) {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	if s.exited {
		return true, s.exitErr
	}

	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-s.waitErr:
		s.exited = true
		s.exitErr = err
		return true, err
	case <-expired:
		return false, nil
	}
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		exited, err := s.waitExit(1200 * time.Millisecond)
		if !exited {
			if s.process != nil {
				_ = s.process.Kill()
			}
			_, err = s.waitExit(-1)
		}
		s.stopErr = normalizeStopErr(err)

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
