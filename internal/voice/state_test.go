package voice

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TurnState
		want     bool
	}{
		{StateIdle, StateListening, true},
		{StateListening, StateFinalizing, true},
		{StateFinalizing, StateGenerating, true},
		{StateGenerating, StateSynthesizing, true},
		{StateSynthesizing, StateSpeaking, true},
		{StateSpeaking, StateIdle, true},
		{StateError, StateIdle, true},

		{StateIdle, StateGenerating, false},
		{StateListening, StateSpeaking, false},
		{StateGenerating, StateListening, false},
		{StateSpeaking, StateGenerating, false},
		{StateIdle, StateError, false},

		// Closed is terminal and reachable from anywhere.
		{StateIdle, StateClosed, true},
		{StateSpeaking, StateClosed, true},
		{StateClosed, StateClosed, true},
		{StateClosed, StateIdle, false},
		{StateClosed, StateListening, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestBusyStates(t *testing.T) {
	busy := map[TurnState]bool{
		StateIdle:         false,
		StateListening:    false,
		StateFinalizing:   true,
		StateGenerating:   true,
		StateSynthesizing: true,
		StateSpeaking:     true,
		StateClosed:       false,
		StateError:        false,
	}
	for state, want := range busy {
		if got := state.Busy(); got != want {
			t.Errorf("%s.Busy() = %v, want %v", state, got, want)
		}
	}
}
