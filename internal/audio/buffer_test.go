package audio

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

const testSampleRate = 16000

// 20 ms of 16 kHz PCM16 mono.
const testFrameBytes = 640

func wavStream(t *testing.T, pcm []byte) []byte {
	t.Helper()
	out, err := EncodeWAVPCM16LE(pcm, testSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	return out
}

func pcmBytes(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 251)
	}
	return p
}

func TestBufferDecodeCompleteFrames(t *testing.T) {
	b := NewBuffer(DefaultMaxBufferBytes, 20*time.Millisecond)

	pcm := pcmBytes(3 * testFrameBytes)
	if b.Ingest(wavStream(t, pcm)) {
		t.Fatal("unexpected overflow")
	}

	frames, err := b.DecodeFrames()
	if err != nil {
		t.Fatalf("DecodeFrames() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if !bytes.Equal(frames[0], pcm[:testFrameBytes]) {
		t.Fatal("first frame does not match source PCM")
	}
	if b.SampleRate() != testSampleRate {
		t.Fatalf("SampleRate() = %d, want %d", b.SampleRate(), testSampleRate)
	}
}

func TestBufferIncompleteFrameWaits(t *testing.T) {
	b := NewBuffer(DefaultMaxBufferBytes, 20*time.Millisecond)

	stream := wavStream(t, pcmBytes(testFrameBytes))
	split := len(stream) - 100
	b.Ingest(stream[:split])

	frames, err := b.DecodeFrames()
	if err != nil {
		t.Fatalf("DecodeFrames() error = %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("frames = %d, want 0 before frame completes", len(frames))
	}

	b.Ingest(stream[split:])
	frames, err = b.DecodeFrames()
	if err != nil {
		t.Fatalf("DecodeFrames() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 after frame completes", len(frames))
	}
}

func TestBufferHeaderSplitAcrossIngests(t *testing.T) {
	b := NewBuffer(DefaultMaxBufferBytes, 20*time.Millisecond)

	stream := wavStream(t, pcmBytes(testFrameBytes))
	b.Ingest(stream[:10])
	if frames, err := b.DecodeFrames(); err != nil || len(frames) != 0 {
		t.Fatalf("partial header: frames = %d, err = %v", len(frames), err)
	}
	b.Ingest(stream[10:])
	frames, err := b.DecodeFrames()
	if err != nil {
		t.Fatalf("DecodeFrames() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
}

func TestBufferRejectsNonWAV(t *testing.T) {
	b := NewBuffer(DefaultMaxBufferBytes, 20*time.Millisecond)
	b.Ingest([]byte("OggS this is not a wav stream at all............"))
	_, err := b.DecodeFrames()
	if !errors.Is(err, ErrBadContainer) {
		t.Fatalf("DecodeFrames() error = %v, want ErrBadContainer", err)
	}
}

func TestBufferOverflowResetThenFreshDecode(t *testing.T) {
	b := NewBuffer(4096, 20*time.Millisecond)

	// Fill close to the bound, leaving an undecodable tail buffered.
	b.Ingest(wavStream(t, pcmBytes(6*testFrameBytes))[:3300])
	if _, err := b.DecodeFrames(); err != nil {
		t.Fatalf("DecodeFrames() error = %v", err)
	}

	if !b.Ingest(pcmBytes(4090)) {
		t.Fatal("expected overflow")
	}
	if b.Len() != 0 {
		t.Fatalf("Len() = %d after overflow, want 0", b.Len())
	}

	// The very next chunk is a fresh self-describing container and must
	// decode cleanly with no retroactive repair.
	fresh := pcmBytes(2 * testFrameBytes)
	if b.Ingest(wavStream(t, fresh)) {
		t.Fatal("unexpected overflow on fresh container")
	}
	frames, err := b.DecodeFrames()
	if err != nil {
		t.Fatalf("DecodeFrames() after reset error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], fresh[:testFrameBytes]) {
		t.Fatal("frame does not match fresh container PCM")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pcm := pcmBytes(4 * testFrameBytes)
	b := NewBuffer(DefaultMaxBufferBytes, 20*time.Millisecond)
	b.Ingest(wavStream(t, pcm))

	frames, err := b.DecodeFrames()
	if err != nil {
		t.Fatalf("DecodeFrames() error = %v", err)
	}
	var got []byte
	for _, f := range frames {
		got = append(got, f...)
	}
	if !bytes.Equal(got, pcm) {
		t.Fatal("reassembled PCM does not match encoded input")
	}
}
