package ports

import (
	"context"
	"time"

	"voxlink/internal/domain"
)

// AudioConfig describes how audio should be captured.
type AudioConfig struct {
	SampleRate  int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session yielding mono float frames.
type AudioSession interface {
	// ReadFrame blocks until up to maxSamples samples are available.
	// It returns io.EOF once the source is exhausted or stopped.
	ReadFrame(maxSamples int) (domain.AudioFrame, error)
	Stop() error
}

// LiveSession is implemented by sources that keep capturing whether or not
// they are read, such as a microphone. Live sources are drained from Start
// so audio captured while connecting is dropped instead of buffered.
type LiveSession interface {
	AudioSession
	Live() bool
}

// AudioCapture creates capture sessions from a device or a file.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// ConnState mirrors the ready state of a socket handle.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnOpen
	ConnClosing
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnClosing:
		return "closing"
	default:
		return "closed"
	}
}

// ConnHandlers receive transport events. Any handler may be nil.
type ConnHandlers struct {
	OnOpen    func()
	OnMessage func(payload []byte)
	OnClose   func(err error)
}

// Conn is a bidirectional message transport handle.
type Conn interface {
	State() ConnState
	SendBinary(payload []byte) error
	// Detach drops all handlers; events arriving after Detach are discarded.
	Detach()
	Close() error
}

// Dialer opens transports asynchronously. The returned handle starts in
// ConnConnecting and reports the outcome through the handlers.
type Dialer interface {
	Dial(ctx context.Context, url string, handlers ConnHandlers) Conn
}

// Timer is a cancelable single-shot timer.
type Timer interface {
	Stop() bool
}

// Scheduler creates single-shot timers.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// EventSink emits session state and transcript updates to the host.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	SentenceCommitted(index int, text string)
	SessionError(code domain.ErrorCode, detail string)
}
