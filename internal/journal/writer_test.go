package journal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voicebridge/voicebridge/internal/bus"
	"github.com/voicebridge/voicebridge/internal/protocol"
)

func waitForMessages(t *testing.T, store Store, sessionID string, want int) []MessageRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.RecentMessages(context.Background(), sessionID, 10)
		if err != nil {
			t.Fatalf("RecentMessages() error = %v", err)
		}
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d journal messages", want)
	return nil
}

func TestWriterPersistsUserAndAssistantTurns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New()
	store := NewInMemoryStore()
	StartWriter(ctx, b, store)

	b.Publish(protocol.FinalTranscript{SessionID: "s1", TurnID: "t1", Text: "what time is it"})
	b.Publish(protocol.ResponseComplete{SessionID: "s1", TurnID: "t1", Text: "it is noon"})
	// Partials never reach the durable log.
	b.Publish(protocol.PartialTranscript{SessionID: "s1", TurnID: "t2", Text: "and also"})

	got := waitForMessages(t, store, "s1", 2)
	if len(got) != 2 {
		t.Fatalf("messages = %d, want 2", len(got))
	}
	if got[0].Role != "user" || got[0].Content != "what time is it" {
		t.Fatalf("first record = %+v, want user transcript", got[0])
	}
	if got[1].Role != "assistant" || got[1].Content != "it is noon" {
		t.Fatalf("second record = %+v, want assistant reply", got[1])
	}
}

func TestWriterRedactsPII(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New()
	store := NewInMemoryStore()
	StartWriter(ctx, b, store)

	b.Publish(protocol.FinalTranscript{SessionID: "s1", TurnID: "t1", Text: "my email is bob@example.com"})

	got := waitForMessages(t, store, "s1", 1)
	if !got[0].PIIRedacted {
		t.Fatal("PIIRedacted = false, want true")
	}
	if strings.Contains(got[0].Content, "bob@example.com") {
		t.Fatalf("content %q still carries the raw email", got[0].Content)
	}
}

func TestWriterStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := bus.New()
	store := NewInMemoryStore()
	w := StartWriter(ctx, b, store)

	cancel()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("writer did not stop after context cancel")
	}
}
