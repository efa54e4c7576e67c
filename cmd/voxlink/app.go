package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"voxlink/internal/domain"
	"voxlink/internal/logging"
)

// App is the console event sink. Committed sentences go to out; status,
// partials and errors go to the logger.
type App struct {
	out io.Writer

	mu     sync.Mutex
	logger zerolog.Logger

	finished     chan struct{}
	failed       chan struct{}
	finishedOnce sync.Once
	failedOnce   sync.Once
}

func NewApp(out io.Writer) *App {
	return &App{
		out:      out,
		logger:   zerolog.Nop(),
		finished: make(chan struct{}),
		failed:   make(chan struct{}),
	}
}

func (a *App) SetLogger(logger zerolog.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = logging.Component(logger, "cli")
}

// Finished is closed once the audio source has run out.
func (a *App) Finished() <-chan struct{} { return a.finished }

// Failed is closed once the session reaches the failed state.
func (a *App) Failed() <-chan struct{} { return a.failed }

func (a *App) log() zerolog.Logger {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logger
}

// SessionStateChanged reports lifecycle updates.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	logger := a.log()
	logger.Info().
		Str(logging.FieldState, string(state)).
		Str(logging.FieldReason, string(reason)).
		Msg(sessionReasonMessage(reason))

	switch {
	case reason == domain.SessionReasonCaptureFinished:
		a.finishedOnce.Do(func() { close(a.finished) })
	case state == domain.SessionStateFailed:
		a.failedOnce.Do(func() { close(a.failed) })
	}
}

// PartialTranscript reports live partial text.
func (a *App) PartialTranscript(text string) {
	logger := a.log()
	logger.Debug().Str("text", text).Msg("partial")
}

// SentenceCommitted prints a finalized sentence.
func (a *App) SentenceCommitted(index int, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, "[%d] %s\n", index+1, text)
}

// SessionError reports backend errors.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	logger := a.log()
	event := logger.Warn()
	if code == domain.ErrorCodeCapture || code == domain.ErrorCodeDecode || code == domain.ErrorCodeStartup {
		event = logger.Error()
	}
	event.Str("code", string(code)).Str("detail", detail).Msg(errorMessage(code, detail))
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonConnecting:
		return "Connecting..."
	case domain.SessionReasonReconnecting:
		return "Reconnecting..."
	case domain.SessionReasonInitializing:
		return "Connected. Initializing..."
	case domain.SessionReasonLive:
		return "Live"
	case domain.SessionReasonDisconnected:
		return "Disconnected"
	case domain.SessionReasonCaptureFinished:
		return "Audio source finished"
	case domain.SessionReasonCaptureFailed:
		return "Mic Error"
	case domain.SessionReasonDecodeFailed:
		return "Audio file could not be decoded"
	case domain.SessionReasonStopped:
		return "Ready"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Audio capture failed"
	case domain.ErrorCodeDecode:
		return "Audio decode failed"
	case domain.ErrorCodeTransport:
		return "Connection Error"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeProtocol:
		return "Protocol error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
