package session

import (
	"context"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1", "nova")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.VoiceID != "nova" || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}
	if got.State != "idle" {
		t.Fatalf("State = %q, want %q", got.State, "idle")
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded || ended.State != "closed" {
		t.Fatalf("ended session = %+v", ended)
	}
}

func TestManagerTurnLifecycle(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1", "")
	if err := m.StartTurn(s.ID, "turn-1"); err != nil {
		t.Fatalf("StartTurn() error = %v", err)
	}
	got, _ := m.Get(s.ID)
	if got.ActiveTurnID != "turn-1" {
		t.Fatalf("ActiveTurnID = %q, want %q", got.ActiveTurnID, "turn-1")
	}

	if err := m.FinishTurn(s.ID); err != nil {
		t.Fatalf("FinishTurn() error = %v", err)
	}
	got, _ = m.Get(s.ID)
	if got.ActiveTurnID != "" {
		t.Fatalf("ActiveTurnID = %q, want empty", got.ActiveTurnID)
	}
	if got.TurnsCompleted != 1 {
		t.Fatalf("TurnsCompleted = %d, want 1", got.TurnsCompleted)
	}
}

func TestManagerMutedFlag(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1", "")
	if err := m.SetMuted(s.ID, true); err != nil {
		t.Fatalf("SetMuted() error = %v", err)
	}
	got, _ := m.Get(s.ID)
	if !got.SpeakerMuted {
		t.Fatalf("SpeakerMuted = false, want true")
	}
}

func TestManagerCloneIsolation(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1", "")
	s.State = "mutated"

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != "idle" {
		t.Fatalf("State = %q, want %q (caller mutation leaked)", got.State, "idle")
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("u1", "")

	expired := make(chan string, 1)
	m.SetExpireHook(func(es *Session) { expired <- es.ID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired session = %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for expire hook")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
}
