package voice

// TurnState is the per-session phase of the turn pipeline. The owning session
// goroutine is the only writer.
type TurnState string

const (
	StateIdle         TurnState = "idle"
	StateListening    TurnState = "listening"
	StateFinalizing   TurnState = "finalizing"
	StateGenerating   TurnState = "generating"
	StateSynthesizing TurnState = "synthesizing"
	StateSpeaking     TurnState = "speaking"
	StateClosed       TurnState = "closed"
	StateError        TurnState = "error"
)

var validNext = map[TurnState][]TurnState{
	StateIdle:         {StateListening},
	StateListening:    {StateFinalizing, StateIdle},
	StateFinalizing:   {StateGenerating, StateIdle},
	StateGenerating:   {StateSynthesizing, StateIdle, StateError},
	StateSynthesizing: {StateSpeaking, StateIdle, StateError},
	StateSpeaking:     {StateIdle, StateError},
	StateError:        {StateIdle},
}

// CanTransition reports whether from → to is a legal pipeline transition.
// Closed is reachable from every state, so it is always legal.
func CanTransition(from, to TurnState) bool {
	if to == StateClosed {
		return true
	}
	if from == StateClosed {
		return false
	}
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Busy reports whether the session is between utterance finalization and the
// end of playback. No new generation may start while busy.
func (s TurnState) Busy() bool {
	switch s {
	case StateFinalizing, StateGenerating, StateSynthesizing, StateSpeaking:
		return true
	default:
		return false
	}
}
