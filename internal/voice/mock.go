package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockProvider is a local fallback provider used when no realtime speech
// vendor is configured. STT pretends every eight frames of audio carry one
// spoken phrase; TTS emits the text bytes back as fake audio.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) StartSession(_ context.Context, _ string) (STTSession, <-chan STTEvent, error) {
	events := make(chan STTEvent, 64)
	s := &mockSTTSession{events: events}
	return s, events, nil
}

func (p *MockProvider) StartStream(_ context.Context, _ string, _ TTSSettings) (TTSStream, error) {
	events := make(chan TTSEvent, 128)
	return &mockTTSStream{events: events}, nil
}

type mockSTTSession struct {
	mu     sync.Mutex
	events chan STTEvent
	frames int
	closed bool
}

// emit must never block: the consumer of events is the same session goroutine
// that calls SendAudio, so a blocking send during a long ingest would deadlock
// the session. Excess simulated events are dropped instead.
func (s *mockSTTSession) emit(evt STTEvent) {
	select {
	case s.events <- evt:
	default:
	}
}

func (s *mockSTTSession) SendAudio(_ context.Context, pcm []byte, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(pcm) == 0 {
		return nil
	}
	s.frames++
	if s.frames%4 == 0 {
		s.emit(STTEvent{
			Type:       STTEventPartial,
			Text:       fmt.Sprintf("simulated phrase %d", s.frames/4),
			Confidence: 0.5,
			Timestamp:  time.Now().UnixMilli(),
		})
	}
	if s.frames%8 == 0 {
		s.emit(STTEvent{
			Type:       STTEventFinal,
			Text:       "simulated voice input",
			Confidence: 0.7,
			Timestamp:  time.Now().UnixMilli(),
		})
	}
	return nil
}

func (s *mockSTTSession) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	text := ""
	if s.frames > 0 {
		text = "simulated voice input"
	}
	s.emit(STTEvent{Type: STTEventFinal, Text: text, Confidence: 0.7, Timestamp: time.Now().UnixMilli()})
	return nil
}

func (s *mockSTTSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

type mockTTSStream struct {
	mu     sync.Mutex
	events chan TTSEvent
	closed bool
}

// emit never blocks while holding mu; a full buffer drops the event rather
// than wedging Close behind a send nobody is draining.
func (s *mockTTSStream) emit(evt TTSEvent) {
	select {
	case s.events <- evt:
	default:
	}
}

func (s *mockTTSStream) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || strings.TrimSpace(text) == "" {
		return nil
	}
	s.emit(TTSEvent{Type: TTSEventAudio, Audio: []byte(text)})
	return nil
}

func (s *mockTTSStream) CloseInput(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.emit(TTSEvent{Type: TTSEventFinal})
	return nil
}

func (s *mockTTSStream) Events() <-chan TTSEvent { return s.events }

func (s *mockTTSStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}
