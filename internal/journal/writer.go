package journal

import (
	"context"
	"log"
	"time"

	"github.com/voicebridge/voicebridge/internal/bus"
	"github.com/voicebridge/voicebridge/internal/policy"
	"github.com/voicebridge/voicebridge/internal/protocol"
)

const saveTimeout = 5 * time.Second

// Writer subscribes to the global event bus and persists the durable
// conversation log. It is the only consumer of the bus that outlives
// individual sessions; the live call never waits on it.
type Writer struct {
	store Store
	done  chan struct{}
}

// StartWriter subscribes to b and persists journal-worthy events until ctx is
// cancelled. Final transcripts become user messages, completed responses
// become assistant messages, turn errors are kept for diagnosis. Text is PII
// redacted before it touches the store.
func StartWriter(ctx context.Context, b *bus.Bus, store Store) *Writer {
	w := &Writer{store: store, done: make(chan struct{})}
	events, unsub := b.Subscribe()

	go func() {
		defer close(w.done)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				w.handle(evt)
			}
		}
	}()
	return w
}

// Done is closed once the writer has drained and stopped.
func (w *Writer) Done() <-chan struct{} { return w.done }

func (w *Writer) handle(evt protocol.Event) {
	var record MessageRecord
	switch e := evt.(type) {
	case protocol.FinalTranscript:
		record = MessageRecord{SessionID: e.SessionID, TurnID: e.TurnID, Role: "user", Content: e.Text}
	case protocol.ResponseComplete:
		record = MessageRecord{SessionID: e.SessionID, TurnID: e.TurnID, Role: "assistant", Content: e.Text}
	case protocol.ErrorEvent:
		record = MessageRecord{SessionID: e.SessionID, TurnID: e.TurnID, Role: "system", Content: e.Code + ": " + e.Detail}
	default:
		return
	}
	if record.Content == "" {
		return
	}

	redacted, changed := policy.RedactPII(record.Content)
	record.Content = redacted
	record.PIIRedacted = changed

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := w.store.SaveMessage(ctx, record); err != nil {
		log.Printf("journal: save failed session=%s turn=%s role=%s: %v", record.SessionID, record.TurnID, record.Role, err)
	}
}
