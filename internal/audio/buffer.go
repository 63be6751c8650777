package audio

import (
	"errors"
	"time"
)

// DefaultMaxBufferBytes bounds the per-session container buffer. Roughly one
// minute of 16 kHz PCM16 mono plus container framing.
const DefaultMaxBufferBytes = 500_000

// Buffer accumulates a streamed audio container for one session and decodes
// complete PCM frames as they become available. Undecoded bytes stay at the
// front in arrival order; the buffer never drops its front, because losing
// the container header poisons every later decode.
type Buffer struct {
	max  int
	data []byte
	dec  *Decoder
}

func NewBuffer(maxBytes int, frameDuration time.Duration) *Buffer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBufferBytes
	}
	return &Buffer{
		max: maxBytes,
		dec: NewDecoder(frameDuration),
	}
}

// Ingest appends p. When the buffer would exceed its bound, the whole buffer
// including p is discarded, the decoder forgets its header, and overflow is
// reported so the caller can force the in-progress utterance to finalize.
// The next ingested bytes are expected to start a fresh container.
func (b *Buffer) Ingest(p []byte) (overflow bool) {
	if len(b.data)+len(p) > b.max {
		b.Reset()
		return true
	}
	b.data = append(b.data, p...)
	return false
}

// DecodeFrames returns every currently-complete PCM frame. A buffer ending
// mid-frame or mid-header is expected during streaming and yields whatever
// frames were complete with a nil error. A malformed container is returned
// as an error for the session to surface.
func (b *Buffer) DecodeFrames() ([][]byte, error) {
	if len(b.data) == 0 {
		return nil, nil
	}
	frames, consumed, err := b.dec.Decode(b.data)
	if err != nil && !errors.Is(err, ErrNeedMoreData) {
		return nil, err
	}
	b.data = b.data[consumed:]
	if len(b.data) == 0 {
		b.data = nil
	}
	return frames, nil
}

// Reset discards all buffered bytes and the parsed container header.
func (b *Buffer) Reset() {
	b.data = nil
	b.dec.Reset()
}

func (b *Buffer) Len() int { return len(b.data) }

// SampleRate reports the active container's sample rate, 0 before the header
// has been decoded.
func (b *Buffer) SampleRate() int { return b.dec.SampleRate() }
