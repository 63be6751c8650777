package voice

import (
	"context"

	"github.com/voicebridge/voicebridge/internal/protocol"
)

type STTEventType string

const (
	STTEventPartial STTEventType = "partial"
	STTEventFinal   STTEventType = "final"
	STTEventError   STTEventType = "error"
)

type STTEvent struct {
	Type       STTEventType
	Text       string
	Confidence float64
	Code       string
	Detail     string
	Retryable  bool
	Timestamp  int64
}

// STTSession is one utterance-scoped recognition stream. Commit asks the
// recognizer to close out the current utterance and emit its final.
type STTSession interface {
	SendAudio(ctx context.Context, pcm []byte, sampleRate int) error
	Commit(ctx context.Context) error
	Close() error
}

type STTProvider interface {
	StartSession(ctx context.Context, sessionID string) (STTSession, <-chan STTEvent, error)
}

type TTSEventType string

const (
	TTSEventAudio TTSEventType = "audio"
	TTSEventFinal TTSEventType = "final"
	TTSEventError TTSEventType = "error"
)

type TTSEvent struct {
	Type      TTSEventType
	Audio     []byte
	Code      string
	Detail    string
	Retryable bool
}

type TTSSettings struct {
	Stability       float64
	SimilarityBoost float64
	Speed           float64
}

// TTSStream synthesizes one utterance. The final event on Events() arrives
// strictly after every audio event of the utterance.
type TTSStream interface {
	SendText(ctx context.Context, text string) error
	CloseInput(ctx context.Context) error
	Events() <-chan TTSEvent
	Close() error
}

type TTSProvider interface {
	StartStream(ctx context.Context, voiceID string, settings TTSSettings) (TTSStream, error)
}

// Transport is the session's live outbound channel: JSON events as text
// frames, synthesized audio as binary frames sent out-of-band.
type Transport interface {
	SendEvent(evt protocol.Event) error
	SendBinary(p []byte) error
}
