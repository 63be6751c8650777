package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	evt := FinalTranscript{
		SessionID:       "s1",
		TurnID:          "t1",
		Text:            "turn the lights off",
		DurationSeconds: 2.4,
		Timestamp:       1712,
	}
	raw, err := Encode(evt)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	var typ string
	if err := json.Unmarshal(env["event"], &typ); err != nil {
		t.Fatalf("unmarshal event field: %v", err)
	}
	if typ != string(TypeFinalTranscript) {
		t.Fatalf("event = %q, want %q", typ, TypeFinalTranscript)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got, ok := decoded.(FinalTranscript)
	if !ok {
		t.Fatalf("decoded type = %T, want FinalTranscript", decoded)
	}
	if got != evt {
		t.Fatalf("decoded = %+v, want %+v", got, evt)
	}
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"event":"bogus","data":{}}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Decode() error = %v, want ErrUnsupportedType", err)
	}
}

func TestCorrelationCarriedByEveryVariant(t *testing.T) {
	events := []Event{
		PartialTranscript{SessionID: "s", TurnID: "t"},
		FinalTranscript{SessionID: "s", TurnID: "t"},
		ResponseChunk{SessionID: "s", TurnID: "t"},
		ResponseComplete{SessionID: "s", TurnID: "t"},
		SynthesisStarted{SessionID: "s", TurnID: "t"},
		SynthesisComplete{SessionID: "s", TurnID: "t"},
		ErrorEvent{SessionID: "s", TurnID: "t"},
	}
	for _, evt := range events {
		sid, tid := evt.Correlation()
		if sid != "s" || tid != "t" {
			t.Fatalf("%s Correlation() = (%q, %q), want (s, t)", evt.EventType(), sid, tid)
		}
	}
}

func TestParseClientMessage(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
		action  ControlAction
	}{
		{name: "end utterance", raw: `{"event":"client_control","data":{"session_id":"s1","action":"end_utterance"}}`, action: ActionEndUtterance},
		{name: "mute", raw: `{"event":"client_control","data":{"session_id":"s1","action":"mute"}}`, action: ActionMute},
		{name: "missing session", raw: `{"event":"client_control","data":{"action":"mute"}}`, wantErr: true},
		{name: "unknown action", raw: `{"event":"client_control","data":{"session_id":"s1","action":"dance"}}`, wantErr: true},
		{name: "wrong event", raw: `{"event":"partial_transcript","data":{}}`, wantErr: true},
		{name: "garbage", raw: `{`, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseClientMessage([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseClientMessage() accepted %s", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClientMessage() error = %v", err)
			}
			if msg.Action != tc.action {
				t.Fatalf("Action = %q, want %q", msg.Action, tc.action)
			}
		})
	}
}
