package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeStatus       = "status"
	TypeRealtime     = "realtime"
	TypeFullSentence = "fullSentence"

	// StatusReady is the status text that unlocks audio transmission.
	StatusReady = "ready"
)

var ErrMalformedMessage = errors.New("malformed server message")

// Message is an inbound server event. The concrete types are Status,
// Realtime, Sentence and Unknown.
type Message interface {
	Type() string
}

// Status carries a server status update such as "ready".
type Status struct {
	Text string
}

// Realtime carries provisional text that replaces the live partial.
type Realtime struct {
	Text string
}

// Sentence carries finalized text for a completed utterance.
type Sentence struct {
	Text string
}

// Unknown is any message whose type is not recognized. Consumers ignore it.
type Unknown struct {
	Kind string
}

func (Status) Type() string   { return TypeStatus }
func (Realtime) Type() string { return TypeRealtime }
func (Sentence) Type() string { return TypeFullSentence }
func (u Unknown) Type() string {
	return u.Kind
}

// Ready reports whether the status unlocks audio transmission.
func (s Status) Ready() bool {
	return s.Text == StatusReady
}

type envelope struct {
	Type *string `json:"type"`
	Text string  `json:"text"`
}

// ParseMessage decodes one server text message. Unrecognized types decode
// to Unknown without error.
func ParseMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing type field", ErrMalformedMessage)
	}

	switch *env.Type {
	case TypeStatus:
		return Status{Text: env.Text}, nil
	case TypeRealtime:
		return Realtime{Text: env.Text}, nil
	case TypeFullSentence:
		return Sentence{Text: env.Text}, nil
	default:
		return Unknown{Kind: *env.Type}, nil
	}
}

// EncodeMessage serializes a server message. It is the server side of
// ParseMessage and is used by loopback servers.
func EncodeMessage(msg Message) ([]byte, error) {
	var text string
	switch m := msg.(type) {
	case Status:
		text = m.Text
	case Realtime:
		text = m.Text
	case Sentence:
		text = m.Text
	case Unknown:
		return json.Marshal(map[string]string{"type": m.Kind})
	default:
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: msg.Type(), Text: text})
}
