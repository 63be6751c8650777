package transcript

import (
	"strings"
	"time"
)

// Aggregator accumulates partial recognition fragments for one utterance and
// produces a single authoritative final text. Partials accumulate rather than
// overwrite: successive partials routinely carry disjoint words, and a
// replace-latest policy silently loses the earlier ones.
type Aggregator struct {
	fragments []string
	finalText string
	finalized bool
	startedAt time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddPartial records a non-final recognition fragment and returns the joined
// accumulation so far. Blank fragments are ignored. A fragment that merely
// extends the previous one replaces it instead of duplicating its words.
func (a *Aggregator) AddPartial(text string) (joined string, ok bool) {
	if a.finalized {
		return "", false
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	if a.startedAt.IsZero() {
		a.startedAt = time.Now().UTC()
	}

	if n := len(a.fragments); n > 0 && strings.HasPrefix(trimmed, a.fragments[n-1]) {
		a.fragments[n-1] = trimmed
	} else {
		a.fragments = append(a.fragments, trimmed)
	}
	return a.Joined(), true
}

// Finalize sets the utterance's authoritative text. An empty final falls back
// to the joined partials so a low-confidence recognizer never erases words the
// user said. Only the first call takes effect.
func (a *Aggregator) Finalize(finalText string) (text string, ok bool) {
	if a.finalized {
		return a.finalText, false
	}
	a.finalized = true

	trimmed := strings.TrimSpace(finalText)
	if trimmed == "" {
		trimmed = a.Joined()
	}
	a.finalText = trimmed
	return a.finalText, a.finalText != ""
}

// ForceFinalize finalizes from accumulated partials alone. Used when the
// audio buffer overflows mid-utterance and the recognizer will never deliver
// its own final.
func (a *Aggregator) ForceFinalize() (text string, ok bool) {
	return a.Finalize("")
}

// Joined returns the accumulated partials as one display string.
func (a *Aggregator) Joined() string {
	return strings.Join(a.fragments, " ")
}

func (a *Aggregator) Finalized() bool { return a.finalized }

// Duration reports elapsed time since the first partial, 0 if none arrived.
func (a *Aggregator) Duration() time.Duration {
	if a.startedAt.IsZero() {
		return 0
	}
	return time.Since(a.startedAt)
}

// Clear resets the aggregator for the next utterance.
func (a *Aggregator) Clear() {
	a.fragments = nil
	a.finalText = ""
	a.finalized = false
	a.startedAt = time.Time{}
}
