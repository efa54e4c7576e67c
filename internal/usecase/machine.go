package usecase

import (
	"errors"

	"voxlink/internal/domain"
)

// EventKind enumerates the inputs of the session state machine.
type EventKind int

const (
	EventStartRequested EventKind = iota + 1
	EventConnectRequested
	EventTransportOpened
	EventServerReady
	EventTransportClosed
	EventReconnectDue
	EventCaptureFinished
	EventCaptureFailed
	EventStopRequested
)

func (k EventKind) String() string {
	switch k {
	case EventStartRequested:
		return "start_requested"
	case EventConnectRequested:
		return "connect_requested"
	case EventTransportOpened:
		return "transport_opened"
	case EventServerReady:
		return "server_ready"
	case EventTransportClosed:
		return "transport_closed"
	case EventReconnectDue:
		return "reconnect_due"
	case EventCaptureFinished:
		return "capture_finished"
	case EventCaptureFailed:
		return "capture_failed"
	case EventStopRequested:
		return "stop_requested"
	default:
		return "unknown"
	}
}

// Event is one state machine input. Err is set for TransportClosed and
// CaptureFailed.
type Event struct {
	Kind EventKind
	Err  error
}

// Effect is a side effect the session performs after a transition.
type Effect int

const (
	EffectOpenTransport Effect = iota + 1
	EffectEnableAudio
	EffectDisableAudio
	// EffectReleaseTransport detaches the transport handlers, then closes it.
	EffectReleaseTransport
	// EffectScheduleReconnect cancels any pending reconnect timer first.
	EffectScheduleReconnect
	EffectCancelReconnect
	EffectStopCapture
)

// Transition is the result of Step. An empty Reason means no state change
// is reported.
type Transition struct {
	Next    domain.SessionState
	Reason  domain.SessionStateReason
	Effects []Effect
}

// Changed reports whether the transition does anything at all.
func (t Transition) Changed(from domain.SessionState) bool {
	return t.Next != from || t.Reason != "" || len(t.Effects) > 0
}

var teardownEffects = []Effect{
	EffectCancelReconnect,
	EffectDisableAudio,
	EffectStopCapture,
	EffectReleaseTransport,
}

// Step computes the transition for event in state. It has no side effects.
func Step(state domain.SessionState, event Event) Transition {
	stay := Transition{Next: state}

	switch event.Kind {
	case EventStopRequested:
		if state == domain.SessionStateIdle {
			return stay
		}
		return Transition{Next: domain.SessionStateIdle, Reason: domain.SessionReasonStopped, Effects: teardown()}

	case EventCaptureFailed:
		reason := domain.SessionReasonCaptureFailed
		if errors.Is(event.Err, domain.ErrDecodeFailed) {
			reason = domain.SessionReasonDecodeFailed
		}
		return Transition{Next: domain.SessionStateFailed, Reason: reason, Effects: teardown()}

	case EventStartRequested:
		if state != domain.SessionStateIdle && state != domain.SessionStateFailed {
			return stay
		}
		return Transition{
			Next:    domain.SessionStateConnecting,
			Reason:  domain.SessionReasonConnecting,
			Effects: []Effect{EffectOpenTransport},
		}

	case EventConnectRequested:
		if state != domain.SessionStateDisconnected {
			return stay
		}
		return Transition{
			Next:    domain.SessionStateConnecting,
			Reason:  domain.SessionReasonReconnecting,
			Effects: []Effect{EffectCancelReconnect, EffectOpenTransport},
		}

	case EventTransportOpened:
		if state != domain.SessionStateConnecting {
			return stay
		}
		return Transition{Next: domain.SessionStateAwaitingReady, Reason: domain.SessionReasonInitializing}

	case EventServerReady:
		if state != domain.SessionStateAwaitingReady {
			return stay
		}
		return Transition{
			Next:    domain.SessionStateStreaming,
			Reason:  domain.SessionReasonLive,
			Effects: []Effect{EffectEnableAudio},
		}

	case EventTransportClosed:
		switch {
		case state.Connected():
			return Transition{
				Next:    domain.SessionStateDisconnected,
				Reason:  domain.SessionReasonDisconnected,
				Effects: []Effect{EffectDisableAudio, EffectReleaseTransport, EffectScheduleReconnect},
			}
		case state == domain.SessionStateDisconnected:
			return Transition{Next: state, Effects: []Effect{EffectScheduleReconnect}}
		default:
			return stay
		}

	case EventReconnectDue:
		if state != domain.SessionStateDisconnected {
			return stay
		}
		return Transition{
			Next:    domain.SessionStateConnecting,
			Reason:  domain.SessionReasonReconnecting,
			Effects: []Effect{EffectOpenTransport},
		}

	case EventCaptureFinished:
		if state == domain.SessionStateIdle || state == domain.SessionStateFailed {
			return stay
		}
		return Transition{Next: state, Reason: domain.SessionReasonCaptureFinished, Effects: []Effect{EffectStopCapture}}
	}

	return stay
}

func teardown() []Effect {
	return append([]Effect(nil), teardownEffects...)
}
