package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies turn event payload variants.
type EventType string

const (
	TypePartialTranscript EventType = "partial_transcript"
	TypeFinalTranscript   EventType = "final_transcript"
	TypeResponseChunk     EventType = "response_chunk"
	TypeResponseComplete  EventType = "response_complete"
	TypeSynthesisStarted  EventType = "synthesis_started"
	TypeSynthesisComplete EventType = "synthesis_complete"
	TypeError             EventType = "error"

	TypeClientControl EventType = "client_control"
)

var ErrUnsupportedType = errors.New("unsupported message type")

// Event is the closed set of turn event variants. Every event carries the
// owning session id and a correlation id shared by all events of one turn.
type Event interface {
	EventType() EventType
	Correlation() (sessionID, turnID string)
}

type PartialTranscript struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type FinalTranscript struct {
	SessionID       string  `json:"session_id"`
	TurnID          string  `json:"turn_id"`
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

type ResponseChunk struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Seq       int    `json:"seq"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type ResponseComplete struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type SynthesisStarted struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Timestamp int64  `json:"timestamp"`
}

type SynthesisComplete struct {
	SessionID       string  `json:"session_id"`
	TurnID          string  `json:"turn_id"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

type ErrorEvent struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id,omitempty"`
	Code      string `json:"code"`
	Source    string `json:"source"`
	Retryable bool   `json:"retryable"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (e PartialTranscript) EventType() EventType { return TypePartialTranscript }
func (e FinalTranscript) EventType() EventType   { return TypeFinalTranscript }
func (e ResponseChunk) EventType() EventType     { return TypeResponseChunk }
func (e ResponseComplete) EventType() EventType  { return TypeResponseComplete }
func (e SynthesisStarted) EventType() EventType  { return TypeSynthesisStarted }
func (e SynthesisComplete) EventType() EventType { return TypeSynthesisComplete }
func (e ErrorEvent) EventType() EventType        { return TypeError }

func (e PartialTranscript) Correlation() (string, string) { return e.SessionID, e.TurnID }
func (e FinalTranscript) Correlation() (string, string)   { return e.SessionID, e.TurnID }
func (e ResponseChunk) Correlation() (string, string)     { return e.SessionID, e.TurnID }
func (e ResponseComplete) Correlation() (string, string)  { return e.SessionID, e.TurnID }
func (e SynthesisStarted) Correlation() (string, string)  { return e.SessionID, e.TurnID }
func (e SynthesisComplete) Correlation() (string, string) { return e.SessionID, e.TurnID }
func (e ErrorEvent) Correlation() (string, string)        { return e.SessionID, e.TurnID }

type envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode wraps an event in the wire envelope {event, data}.
func Encode(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: evt.EventType(), Data: data})
}

// Decode parses a wire envelope back into its typed event variant.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	switch env.Event {
	case TypePartialTranscript:
		var evt PartialTranscript
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeFinalTranscript:
		var evt FinalTranscript
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeResponseChunk:
		var evt ResponseChunk
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeResponseComplete:
		var evt ResponseComplete
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeSynthesisStarted:
		var evt SynthesisStarted
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeSynthesisComplete:
		var evt SynthesisComplete
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeError:
		var evt ErrorEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, ErrUnsupportedType
	}
}
