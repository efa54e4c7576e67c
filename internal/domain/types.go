package domain

import "errors"

// SessionState models the streaming connection lifecycle.
type SessionState string

const (
	SessionStateIdle          SessionState = "idle"
	SessionStateConnecting    SessionState = "connecting"
	SessionStateAwaitingReady SessionState = "awaiting_ready"
	SessionStateStreaming     SessionState = "streaming"
	SessionStateDisconnected  SessionState = "disconnected"
	SessionStateFailed        SessionState = "failed"
)

// Connected reports whether the state holds a live transport handle.
func (s SessionState) Connected() bool {
	switch s {
	case SessionStateConnecting, SessionStateAwaitingReady, SessionStateStreaming:
		return true
	default:
		return false
	}
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonConnecting      SessionStateReason = "connecting"
	SessionReasonReconnecting    SessionStateReason = "reconnecting"
	SessionReasonInitializing    SessionStateReason = "initializing"
	SessionReasonLive            SessionStateReason = "live"
	SessionReasonDisconnected    SessionStateReason = "disconnected"
	SessionReasonCaptureFinished SessionStateReason = "capture_finished"
	SessionReasonCaptureFailed   SessionStateReason = "capture_failed"
	SessionReasonDecodeFailed    SessionStateReason = "decode_failed"
	SessionReasonStopped         SessionStateReason = "stopped"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeCapture     ErrorCode = "capture"
	ErrorCodeDecode      ErrorCode = "decode"
	ErrorCodeTransport   ErrorCode = "transport"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodeProtocol    ErrorCode = "protocol"
)

var (
	// ErrCaptureUnavailable marks a capture device that could not be opened or failed mid-run.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
	// ErrDecodeFailed marks an audio file that could not be decoded.
	ErrDecodeFailed = errors.New("audio file decode failed")
)

// AudioFrame is one capture callback worth of normalized mono samples.
type AudioFrame struct {
	Samples    []float32
	SampleRate int
}

// PcmChunk is a frame quantized to signed 16-bit PCM. SampleRate is always
// the actual rate of Samples.
type PcmChunk struct {
	Samples    []int16
	SampleRate int
}

// Segment is one renderable piece of the transcript. Style alternates 0/1
// across committed sentences and is only a presentation hint.
type Segment struct {
	Text    string `json:"text"`
	Style   int    `json:"style"`
	Partial bool   `json:"partial,omitempty"`
}

// Status summarizes the current runtime status.
type Status struct {
	State     SessionState `json:"state"`
	Ready     bool         `json:"ready"`
	Sentences int          `json:"sentences"`
	RunID     string       `json:"run_id,omitempty"`
	Message   string       `json:"message,omitempty"`
}
