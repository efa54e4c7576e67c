package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"voxlink/internal/domain"
	"voxlink/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return &fakeAudioSession{}, nil
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeAudioSession yields its frames then io.EOF, or readErr instead of EOF.
type fakeAudioSession struct {
	mu        sync.Mutex
	frames    []domain.AudioFrame
	readErr   error
	lastMax   int
	stopCalls int
	stopErr   error
}

func (f *fakeAudioSession) ReadFrame(maxSamples int) (domain.AudioFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMax = maxSamples
	if len(f.frames) == 0 {
		if f.readErr != nil {
			return domain.AudioFrame{}, f.readErr
		}
		return domain.AudioFrame{}, io.EOF
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	return frame, nil
}

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeAudioSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

// liveAudioSession blocks like a microphone until a frame is pushed or
// the session is stopped.
type liveAudioSession struct {
	frames chan domain.AudioFrame
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	stopCalls int
}

func newLiveAudioSession() *liveAudioSession {
	return &liveAudioSession{frames: make(chan domain.AudioFrame, 16), done: make(chan struct{})}
}

func (l *liveAudioSession) Live() bool { return true }

func (l *liveAudioSession) ReadFrame(_ int) (domain.AudioFrame, error) {
	select {
	case frame := <-l.frames:
		return frame, nil
	case <-l.done:
		return domain.AudioFrame{}, io.EOF
	}
}

func (l *liveAudioSession) Stop() error {
	l.mu.Lock()
	l.stopCalls++
	l.mu.Unlock()
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *liveAudioSession) stops() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopCalls
}

type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
}

func (f *fakeDialer) Dial(_ context.Context, url string, handlers ports.ConnHandlers) ports.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn := &fakeConn{state: ports.ConnConnecting, handlers: handlers}
	f.urls = append(f.urls, url)
	f.conns = append(f.conns, conn)
	return conn
}

func (f *fakeDialer) dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeDialer) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

// fakeConn keeps the handlers it was dialed with even after Detach so tests
// can replay late callbacks from a released transport.
type fakeConn struct {
	mu         sync.Mutex
	state      ports.ConnState
	handlers   ports.ConnHandlers
	sent       [][]byte
	sendErr    error
	detached   bool
	closeCalls int
}

func (f *fakeConn) State() ports.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) SendBinary(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

func (f *fakeConn) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = true
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.state = ports.ConnClosed
	return nil
}

func (f *fakeConn) open() {
	f.mu.Lock()
	f.state = ports.ConnOpen
	onOpen := f.handlers.OnOpen
	f.mu.Unlock()
	onOpen()
}

func (f *fakeConn) receive(payload string) {
	f.mu.Lock()
	onMessage := f.handlers.OnMessage
	f.mu.Unlock()
	onMessage([]byte(payload))
}

func (f *fakeConn) drop(err error) {
	f.mu.Lock()
	f.state = ports.ConnClosed
	onClose := f.handlers.OnClose
	f.mu.Unlock()
	onClose(err)
}

func (f *fakeConn) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeConn) released() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detached, f.closeCalls
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      *sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (f *fakeScheduler) AfterFunc(d time.Duration, fn func()) ports.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{mu: &f.mu, delay: d, fn: fn}
	f.timers = append(f.timers, timer)
	return timer
}

func (f *fakeScheduler) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, timer := range f.timers {
		if !timer.stopped && !timer.fired {
			n++
		}
	}
	return n
}

// fire runs timer i even if it was stopped, like a timer that raced its
// cancellation.
func (f *fakeScheduler) fire(i int) {
	f.mu.Lock()
	timer := f.timers[i]
	timer.fired = true
	f.mu.Unlock()
	timer.fn()
}

type fakeEventSink struct {
	mu sync.Mutex

	states    []stateEvent
	partials  []string
	sentences []sentenceEvent
	errors    []errEvent

	onState func(domain.SessionState, domain.SessionStateReason)
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type sentenceEvent struct {
	index int
	text  string
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
	hook := f.onState
	f.mu.Unlock()
	if hook != nil {
		hook(state, reason)
	}
}

func (f *fakeEventSink) PartialTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *fakeEventSink) SentenceCommitted(index int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentences = append(f.sentences, sentenceEvent{index: index, text: text})
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) snapshotSentences() []sentenceEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentenceEvent, len(f.sentences))
	copy(out, f.sentences)
	return out
}

func (f *fakeEventSink) lastState() stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return stateEvent{}
	}
	return f.states[len(f.states)-1]
}
