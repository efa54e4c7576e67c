package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voxlink/internal/domain"
	"voxlink/internal/logging"
	"voxlink/internal/metrics"
	"voxlink/internal/pcm"
	"voxlink/internal/ports"
	"voxlink/internal/protocol"
)

var ErrAlreadyStarted = errors.New("session already started")

// session is the streaming core. Every method runs on the loop goroutine;
// other goroutines reach it only through post.
type session struct {
	cfg       Config
	dialer    ports.Dialer
	scheduler ports.Scheduler
	events    ports.EventSink
	metrics   *metrics.Metrics
	base      zerolog.Logger
	logger    zerolog.Logger
	pipeline  pcm.Pipeline

	post      func(func())
	startPump func(audio ports.AudioSession, gen uint64)
	ctx       context.Context

	state  domain.SessionState
	reason domain.SessionStateReason
	ready  bool
	runID  string
	ledger *TranscriptLedger

	conn    ports.Conn
	connGen uint64

	timer    ports.Timer
	timerGen uint64

	capture    ports.AudioSession
	captureGen uint64
	pumping    bool
}

func newSession(
	cfg Config,
	dialer ports.Dialer,
	scheduler ports.Scheduler,
	events ports.EventSink,
	post func(func()),
) *session {
	s := &session{
		cfg:       cfg,
		dialer:    dialer,
		scheduler: scheduler,
		events:    events,
		metrics:   cfg.Metrics,
		base:      cfg.Logger,
		logger:    cfg.Logger,
		pipeline:  cfg.Pipeline,
		post:      post,
		ctx:       context.Background(),
		state:     domain.SessionStateIdle,
		ledger:    NewTranscriptLedger(),
	}
	s.startPump = s.spawnPump
	return s
}

func (s *session) active() bool {
	return s.state != domain.SessionStateIdle && s.state != domain.SessionStateFailed
}

// begin installs a started capture session and dials. A new run gets a
// fresh ledger.
func (s *session) begin(capture ports.AudioSession) error {
	if s.active() {
		return ErrAlreadyStarted
	}
	s.runID = uuid.NewString()
	s.logger = s.base.With().Str(logging.FieldRunID, s.runID).Logger()
	s.ledger = NewTranscriptLedger()
	s.captureGen++
	s.capture = capture
	s.pumping = false
	s.apply(Step(s.state, Event{Kind: EventStartRequested}))
	if isLive(capture) {
		s.pumping = true
		s.startPump(capture, s.captureGen)
	}
	return nil
}

// isLive reports whether the source must be drained before the server is
// ready. Other sources are read from the first ready on.
func isLive(capture ports.AudioSession) bool {
	live, ok := capture.(ports.LiveSession)
	return ok && live.Live()
}

// fail reports a capture source that could not be started.
func (s *session) fail(err error) {
	s.events.SessionError(captureErrorCode(err), err.Error())
	s.logger.Error().Err(err).Msg("audio capture failed")
	s.apply(Step(s.state, Event{Kind: EventCaptureFailed, Err: err}))
}

func (s *session) stop() {
	s.apply(Step(s.state, Event{Kind: EventStopRequested}))
}

// connect dials unless the current handle is already connecting or open.
func (s *session) connect() {
	if s.conn != nil {
		switch s.conn.State() {
		case ports.ConnConnecting, ports.ConnOpen:
			return
		}
	}
	s.apply(Step(s.state, Event{Kind: EventConnectRequested}))
}

func (s *session) status() domain.Status {
	return domain.Status{
		State:     s.state,
		Ready:     s.ready,
		Sentences: s.ledger.Len(),
		RunID:     s.runID,
		Message:   string(s.reason),
	}
}

func (s *session) apply(tr Transition) {
	from := s.state
	if !tr.Changed(from) {
		return
	}

	s.state = tr.Next
	if tr.Reason != "" {
		s.reason = tr.Reason
	}

	for _, effect := range tr.Effects {
		s.run(effect)
	}

	if tr.Reason == "" {
		return
	}
	if tr.Next != from {
		s.metrics.StateTransitions.WithLabelValues(string(tr.Next)).Inc()
	}
	s.logger.Info().
		Str(logging.FieldState, string(tr.Next)).
		Str(logging.FieldReason, string(tr.Reason)).
		Msg("session state changed")
	s.events.SessionStateChanged(tr.Next, tr.Reason)
}

func (s *session) run(effect Effect) {
	switch effect {
	case EffectOpenTransport:
		s.openTransport()
	case EffectEnableAudio:
		s.ready = true
		if !s.pumping && s.capture != nil {
			s.pumping = true
			s.startPump(s.capture, s.captureGen)
		}
	case EffectDisableAudio:
		s.ready = false
	case EffectReleaseTransport:
		s.releaseTransport()
	case EffectScheduleReconnect:
		s.cancelReconnect()
		gen := s.timerGen
		s.timer = s.scheduler.AfterFunc(s.cfg.ReconnectDelay, func() {
			s.post(func() { s.onReconnectDue(gen) })
		})
	case EffectCancelReconnect:
		s.cancelReconnect()
	case EffectStopCapture:
		s.stopCapture()
	}
}

func (s *session) openTransport() {
	s.releaseTransport()

	gen := s.connGen
	s.conn = s.dialer.Dial(s.ctx, s.cfg.URL, ports.ConnHandlers{
		OnOpen: func() {
			s.post(func() { s.onOpen(gen) })
		},
		OnMessage: func(payload []byte) {
			s.post(func() { s.onMessage(gen, payload) })
		},
		OnClose: func(err error) {
			s.post(func() { s.onClose(gen, err) })
		},
	})
}

// releaseTransport detaches before closing so the close cannot re-enter
// the state machine.
func (s *session) releaseTransport() {
	s.connGen++
	if s.conn == nil {
		return
	}
	conn := s.conn
	s.conn = nil
	conn.Detach()
	if err := conn.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close transport")
	}
}

func (s *session) cancelReconnect() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *session) stopCapture() {
	s.captureGen++
	s.pumping = false
	if s.capture == nil {
		return
	}
	capture := s.capture
	s.capture = nil
	if err := capture.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to stop audio capture cleanly")
	}
}

func (s *session) spawnPump(audio ports.AudioSession, gen uint64) {
	go pumpAudioFrames(audio, s.cfg.ChunkSize,
		func(frame domain.AudioFrame) {
			s.post(func() { s.onFrame(gen, frame) })
		},
		func(err error) {
			s.post(func() { s.onCaptureEnd(gen, err) })
		},
	)
}

func (s *session) onOpen(gen uint64) {
	if gen != s.connGen {
		return
	}
	s.apply(Step(s.state, Event{Kind: EventTransportOpened}))
}

func (s *session) onMessage(gen uint64, payload []byte) {
	if gen != s.connGen {
		return
	}

	msg, err := protocol.ParseMessage(payload)
	if err != nil {
		s.metrics.MalformedMessages.Inc()
		s.logger.Warn().Err(err).Int("bytes", len(payload)).Msg("dropping malformed server message")
		return
	}
	label := msg.Type()
	if _, ok := msg.(protocol.Unknown); ok {
		label = "unknown"
	}
	s.metrics.MessagesReceived.WithLabelValues(label).Inc()

	switch m := msg.(type) {
	case protocol.Status:
		if m.Ready() {
			s.apply(Step(s.state, Event{Kind: EventServerReady}))
		}
	case protocol.Realtime:
		s.ledger.OnRealtime(m.Text)
		s.events.PartialTranscript(m.Text)
	case protocol.Sentence:
		index := s.ledger.OnSentence(m.Text)
		s.events.SentenceCommitted(index, m.Text)
	default:
		s.logger.Debug().Str("type", msg.Type()).Msg("ignoring unknown server message")
	}
}

func (s *session) onClose(gen uint64, err error) {
	if gen != s.connGen {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("transport closed")
		s.events.SessionError(domain.ErrorCodeTransport, err.Error())
	}
	s.apply(Step(s.state, Event{Kind: EventTransportClosed, Err: err}))
}

func (s *session) onReconnectDue(gen uint64) {
	if gen != s.timerGen {
		return
	}
	s.timer = nil
	s.metrics.Reconnects.Inc()
	s.apply(Step(s.state, Event{Kind: EventReconnectDue}))
}

// onFrame sends one frame if the session is streaming. Frames outside that
// window are dropped, never queued.
func (s *session) onFrame(gen uint64, frame domain.AudioFrame) {
	if gen != s.captureGen {
		return
	}
	s.metrics.FramesCaptured.Inc()

	if frame.SampleRate <= 0 {
		s.metrics.FramesDropped.Inc()
		s.logger.Warn().Int("sample_rate", frame.SampleRate).Msg("dropping frame with invalid sample rate")
		return
	}
	if !s.ready || s.conn == nil || s.conn.State() != ports.ConnOpen {
		s.metrics.FramesDropped.Inc()
		return
	}

	chunk := s.pipeline.Process(frame)
	payload, err := protocol.EncodeAudioChunk(uint32(chunk.SampleRate), chunk.Samples)
	if err != nil {
		s.metrics.FramesDropped.Inc()
		s.logger.Warn().Err(err).Msg("failed to encode audio chunk")
		return
	}
	if err := s.conn.SendBinary(payload); err != nil {
		s.metrics.FramesDropped.Inc()
		s.logger.Warn().Err(err).Msg("failed to send audio chunk")
		s.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", err))
		return
	}
	s.metrics.FramesSent.Inc()
	s.metrics.BytesSent.Add(float64(len(payload)))
}

func (s *session) onCaptureEnd(gen uint64, err error) {
	if gen != s.captureGen {
		return
	}
	if err == nil {
		s.apply(Step(s.state, Event{Kind: EventCaptureFinished}))
		return
	}
	s.events.SessionError(captureErrorCode(err), fmt.Sprintf("audio capture error: %v", err))
	s.logger.Error().Err(err).Msg("audio capture failed")
	s.apply(Step(s.state, Event{Kind: EventCaptureFailed, Err: err}))
}

func captureErrorCode(err error) domain.ErrorCode {
	if errors.Is(err, domain.ErrDecodeFailed) {
		return domain.ErrorCodeDecode
	}
	return domain.ErrorCodeCapture
}

func reconnectDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return 3 * time.Second
	}
	return d
}
