package httpapi

import (
	"errors"
	"sync"

	"github.com/voicebridge/voicebridge/internal/protocol"
)

var errConnClosed = errors.New("websocket connection closed")

// wsTransport bridges the session goroutine to the websocket writer. Sends
// block until the writer drains them or the connection goes away, so event
// and audio ordering on the wire matches publish order exactly.
type wsTransport struct {
	outbound chan any

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newWSTransport() *wsTransport {
	return &wsTransport{
		outbound: make(chan any, 256),
		done:     make(chan struct{}),
	}
}

func (t *wsTransport) SendEvent(evt protocol.Event) error {
	select {
	case t.outbound <- evt:
		return nil
	case <-t.done:
		return errConnClosed
	}
}

func (t *wsTransport) SendBinary(p []byte) error {
	b := make([]byte, len(p))
	copy(b, p)
	select {
	case t.outbound <- b:
		return nil
	case <-t.done:
		return errConnClosed
	}
}

func (t *wsTransport) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.done)
}
