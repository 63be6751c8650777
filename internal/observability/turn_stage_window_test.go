package observability

import (
	"testing"
	"time"
)

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := newTurnStageWindow(8)
	for _, ms := range []float64{100, 200, 300, 400} {
		w.Observe("turn_total", ms)
	}
	w.ObserveIndicator("forced_finalize")
	w.ObserveIndicator("forced_finalize")

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("Stages = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "turn_total" {
		t.Fatalf("Stage = %q, want turn_total", s.Stage)
	}
	if s.Samples != 4 {
		t.Fatalf("Samples = %d, want 4", s.Samples)
	}
	if s.LastMS != 400 {
		t.Fatalf("LastMS = %v, want 400", s.LastMS)
	}
	if s.AvgMS != 250 {
		t.Fatalf("AvgMS = %v, want 250", s.AvgMS)
	}
	if s.P50MS != 250 {
		t.Fatalf("P50MS = %v, want 250", s.P50MS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v, want one forced_finalize with count 2", snap.Indicators)
	}
}

func TestTurnStageWindowWrapsAround(t *testing.T) {
	w := newTurnStageWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe("generation_total", float64(i*10))
	}
	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("Stages = %d, want 1", len(snap.Stages))
	}
	if snap.Stages[0].Samples != 4 {
		t.Fatalf("Samples = %d, want window size 4", snap.Stages[0].Samples)
	}
	if snap.Stages[0].LastMS != 90 {
		t.Fatalf("LastMS = %v, want 90", snap.Stages[0].LastMS)
	}
}

func TestTurnStageWindowIgnoresInvalidObservations(t *testing.T) {
	w := newTurnStageWindow(4)
	w.Observe("", 5)
	w.Observe("x", -1)
	w.ObserveIndicator("   ")
	snap := w.Snapshot()
	if len(snap.Stages) != 0 || len(snap.Indicators) != 0 {
		t.Fatalf("snapshot not empty: %+v", snap)
	}
	if snap.GeneratedAt.After(time.Now().Add(time.Second)) {
		t.Fatalf("GeneratedAt in the future")
	}
}
