package bus

import (
	"sync"

	"github.com/voicebridge/voicebridge/internal/protocol"
)

const subscriberBuffer = 256

// Bus fans turn events out to every subscriber. It is the only state shared
// across sessions: many session goroutines publish concurrently and durable
// log writers come and go, all without caller-side locking.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan protocol.Event
}

func New() *Bus {
	return &Bus{subs: make(map[int]chan protocol.Event)}
}

// Subscribe registers a buffered subscriber channel and returns it with its
// unsubscribe func. Unsubscribing closes the channel; calling the func twice
// is safe.
func (b *Bus) Subscribe() (<-chan protocol.Event, func()) {
	ch := make(chan protocol.Event, subscriberBuffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish delivers evt to every subscriber without blocking. A subscriber
// whose buffer is full misses the event; delivery counts are returned so the
// publisher can log and count drops without the bus ever failing a caller.
func (b *Bus) Publish(evt protocol.Event) (delivered, dropped int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
