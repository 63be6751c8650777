package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/voicebridge/voicebridge/internal/protocol"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	evt := protocol.FinalTranscript{SessionID: "s1", TurnID: "t1", Text: "hello"}
	delivered, dropped := b.Publish(evt)
	if delivered != 2 || dropped != 0 {
		t.Fatalf("Publish = (%d, %d), want (2, 0)", delivered, dropped)
	}

	for _, ch := range []<-chan protocol.Event{ch1, ch2} {
		select {
		case got := <-ch:
			if _, turnID := got.Correlation(); turnID != "t1" {
				t.Fatalf("turn id = %q, want %q", turnID, "t1")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe()
	unsub()
	unsub() // second call is a no-op

	if _, open := <-ch; open {
		t.Fatal("channel still open after unsubscribe")
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", n)
	}
}

func TestBusSlowSubscriberNeverBlocksPublish(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe() // never drained
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+50; i++ {
			b.Publish(protocol.ResponseChunk{SessionID: "s1", TurnID: "t1", Seq: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBusOrderPreservedPerSubscriber(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 10; i++ {
		b.Publish(protocol.ResponseChunk{SessionID: "s1", TurnID: "t1", Seq: i})
	}
	for i := 0; i < 10; i++ {
		evt := <-ch
		chunk, ok := evt.(protocol.ResponseChunk)
		if !ok {
			t.Fatalf("event %d = %T, want ResponseChunk", i, evt)
		}
		if chunk.Seq != i {
			t.Fatalf("Seq = %d at position %d, want in-order delivery", chunk.Seq, i)
		}
	}
}

func TestBusConcurrentPublishAndSubscribe(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ch, unsub := b.Subscribe()
			for j := 0; j < 20; j++ {
				b.Publish(protocol.PartialTranscript{
					SessionID: fmt.Sprintf("s%d", n),
					TurnID:    "t1",
					Text:      "x",
				})
			}
			unsub()
			for range ch {
			}
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent publish/subscribe deadlocked")
	}
}
