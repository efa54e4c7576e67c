package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors for one streaming client.
type Metrics struct {
	FramesCaptured prometheus.Counter
	FramesSent     prometheus.Counter
	FramesDropped  prometheus.Counter
	BytesSent      prometheus.Counter

	MessagesReceived  *prometheus.CounterVec
	MalformedMessages prometheus.Counter

	Reconnects       prometheus.Counter
	StateTransitions *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates collectors registered on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxlink_frames_captured_total",
			Help: "Total number of audio frames delivered by the capture source",
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxlink_frames_sent_total",
			Help: "Total number of audio frames sent to the recognition service",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxlink_frames_dropped_total",
			Help: "Total number of audio frames dropped because the session was not streaming",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxlink_bytes_sent_total",
			Help: "Total number of wire bytes sent for audio",
		}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxlink_messages_received_total",
			Help: "Total number of server messages received by type",
		}, []string{"type"}),
		MalformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxlink_malformed_messages_total",
			Help: "Total number of server messages that could not be parsed",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxlink_reconnects_total",
			Help: "Total number of reconnect attempts",
		}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxlink_state_transitions_total",
			Help: "Total number of session state transitions by target state",
		}, []string{"state"}),
		gatherer: reg,
	}
}

// Handler exposes the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
