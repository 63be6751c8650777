package publish

import (
	"log"

	"github.com/voicebridge/voicebridge/internal/bus"
	"github.com/voicebridge/voicebridge/internal/observability"
	"github.com/voicebridge/voicebridge/internal/protocol"
)

// SessionSender delivers events to one live session connection.
type SessionSender interface {
	SendEvent(evt protocol.Event) error
}

// Publisher fans each turn event out to the session channel and the global
// bus. The two deliveries serve consumers with different lifetimes, so they
// are attempted independently: a dead websocket must not starve the durable
// log, and a wedged log subscriber must not silence the live call.
type Publisher struct {
	bus     *bus.Bus
	metrics *observability.Metrics
}

func New(b *bus.Bus, m *observability.Metrics) *Publisher {
	return &Publisher{bus: b, metrics: m}
}

// Publish delivers evt best-effort to both channels. Failures are logged and
// counted, never returned: a publish problem is a delivery problem, not a
// pipeline failure. Callers invoke Publish from the owning session goroutine,
// which is what keeps per-correlation ordering intact on both channels.
func (p *Publisher) Publish(sender SessionSender, evt protocol.Event) {
	sessionID, turnID := evt.Correlation()

	if sender != nil {
		if err := sender.SendEvent(evt); err != nil {
			log.Printf("publish: session channel failed session=%s turn=%s event=%s: %v", sessionID, turnID, evt.EventType(), err)
			p.count("session", "error")
		} else {
			p.count("session", "ok")
		}
	} else {
		p.count("session", "closed")
	}

	if p.bus != nil {
		delivered, dropped := p.bus.Publish(evt)
		if dropped > 0 {
			log.Printf("publish: bus dropped session=%s turn=%s event=%s subscribers=%d", sessionID, turnID, evt.EventType(), dropped)
			p.count("bus", "dropped")
		}
		if delivered > 0 || dropped == 0 {
			p.count("bus", "ok")
		}
	}

	if p.metrics != nil {
		p.metrics.TurnEvents.WithLabelValues(string(evt.EventType())).Inc()
	}
}

func (p *Publisher) count(channel, result string) {
	if p.metrics != nil {
		p.metrics.PublishResults.WithLabelValues(channel, result).Inc()
	}
}
