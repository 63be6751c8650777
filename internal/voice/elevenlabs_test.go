package voice

import (
	"testing"
	"time"
)

// The events buffer may fill while the consumer is busy elsewhere. Every
// emitted event, the final marker above all, must still arrive once the
// consumer catches up; a dropped final leaves the turn stuck waiting for a
// completion that never comes.
func TestElevenTTSEmitSurvivesFullBuffer(t *testing.T) {
	s := &elevenTTSStream{done: make(chan struct{}), events: make(chan TTSEvent, 2)}

	go func() {
		for i := 0; i < 4; i++ {
			s.emit(TTSEvent{Type: TTSEventAudio, Audio: []byte{byte(i)}})
		}
		s.emit(TTSEvent{Type: TTSEventFinal})
		close(s.events)
	}()

	var got []TTSEvent
	deadline := time.After(2 * time.Second)
	for len(got) < 5 {
		select {
		case evt, ok := <-s.events:
			if !ok {
				t.Fatalf("events closed after %d events, want 5", len(got))
			}
			time.Sleep(time.Millisecond)
			got = append(got, evt)
		case <-deadline:
			t.Fatalf("timed out with %d events, want 5", len(got))
		}
	}
	if got[len(got)-1].Type != TTSEventFinal {
		t.Fatalf("last event = %+v, want final marker", got[len(got)-1])
	}
	for i, evt := range got[:4] {
		if evt.Type != TTSEventAudio || evt.Audio[0] != byte(i) {
			t.Fatalf("event %d = %+v, out of order", i, evt)
		}
	}
}

func TestElevenTTSEmitUnblocksOnClose(t *testing.T) {
	s := &elevenTTSStream{done: make(chan struct{}), events: make(chan TTSEvent, 1)}
	s.emit(TTSEvent{Type: TTSEventAudio, Audio: []byte{1}})

	released := make(chan struct{})
	go func() {
		s.emit(TTSEvent{Type: TTSEventAudio, Audio: []byte{2}})
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("emit returned before the stream was closed")
	case <-time.After(50 * time.Millisecond):
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("emit still blocked after Close")
	}
}

func TestElevenSTTEmitSurvivesFullBuffer(t *testing.T) {
	s := &elevenSTTSession{done: make(chan struct{}), events: make(chan STTEvent, 2)}

	go func() {
		for i := 0; i < 4; i++ {
			s.emit(STTEvent{Type: STTEventPartial, Text: "chunk"})
		}
		s.emit(STTEvent{Type: STTEventFinal, Text: "all of it"})
		close(s.events)
	}()

	var got []STTEvent
	deadline := time.After(2 * time.Second)
	for len(got) < 5 {
		select {
		case evt, ok := <-s.events:
			if !ok {
				t.Fatalf("events closed after %d events, want 5", len(got))
			}
			time.Sleep(time.Millisecond)
			got = append(got, evt)
		case <-deadline:
			t.Fatalf("timed out with %d events, want 5", len(got))
		}
	}
	last := got[len(got)-1]
	if last.Type != STTEventFinal || last.Text != "all of it" {
		t.Fatalf("last event = %+v, want the final transcript", last)
	}
}

func TestClampTTSSettings(t *testing.T) {
	cases := []struct {
		v, lo, hi, fallback, want float64
	}{
		{0, 0, 1, 0.42, 0.42},
		{-1, 0, 1, 0.42, 0.42},
		{0.5, 0, 1, 0.42, 0.5},
		{2, 0, 1, 0.42, 1},
		{0.1, 0.7, 1.2, 1.0, 0.7},
	}
	for _, tc := range cases {
		if got := clamp(tc.v, tc.lo, tc.hi, tc.fallback); got != tc.want {
			t.Fatalf("clamp(%v, %v, %v, %v) = %v, want %v", tc.v, tc.lo, tc.hi, tc.fallback, got, tc.want)
		}
	}
}
