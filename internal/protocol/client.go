package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ControlAction is the closed set of client control verbs.
type ControlAction string

const (
	ActionEndUtterance ControlAction = "end_utterance"
	ActionMute         ControlAction = "mute"
	ActionUnmute       ControlAction = "unmute"
	ActionEndSession   ControlAction = "end_session"
)

// ClientControl is an inbound control message. Client audio bytes travel
// out-of-band as binary websocket frames, never inside JSON.
type ClientControl struct {
	SessionID string        `json:"session_id"`
	Action    ControlAction `json:"action"`
}

func (c ClientControl) EventType() EventType        { return TypeClientControl }
func (c ClientControl) Correlation() (string, string) { return c.SessionID, "" }

// ParseClientMessage decodes a text frame from the client.
func ParseClientMessage(raw []byte) (ClientControl, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientControl{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Event != TypeClientControl {
		return ClientControl{}, ErrUnsupportedType
	}
	var msg ClientControl
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		return ClientControl{}, err
	}
	if strings.TrimSpace(msg.SessionID) == "" {
		return ClientControl{}, errors.New("invalid client_control: missing session_id")
	}
	switch msg.Action {
	case ActionEndUtterance, ActionMute, ActionUnmute, ActionEndSession:
		return msg, nil
	default:
		return ClientControl{}, fmt.Errorf("invalid client_control action %q", msg.Action)
	}
}
