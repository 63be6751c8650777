package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBadContainer means the stream is not a RIFF/WAVE container. The
	// session should surface a turn error rather than wait for more bytes.
	ErrBadContainer = errors.New("audio: not a RIFF/WAVE container")
	// ErrNeedMoreData means the buffered bytes end mid-header or mid-frame.
	// Expected during streaming; callers wait for the next ingest.
	ErrNeedMoreData = errors.New("audio: need more data")
)

const (
	riffHeaderLen = 12
	chunkHeadLen  = 8
	formatPCM     = 1
)

// Decoder incrementally parses a streamed RIFF/WAV PCM16 container into
// fixed-duration PCM frames. The fmt chunk is parsed once; after that the
// decoder only cuts frames, so decode cost is flat per chunk.
type Decoder struct {
	frameDuration time.Duration

	headerDone bool
	sampleRate int
	channels   int
	bitsPer    int
	frameBytes int
}

func NewDecoder(frameDuration time.Duration) *Decoder {
	if frameDuration <= 0 {
		frameDuration = 20 * time.Millisecond
	}
	return &Decoder{frameDuration: frameDuration}
}

// Reset forgets the parsed header. The next Decode expects a fresh container.
func (d *Decoder) Reset() {
	d.headerDone = false
	d.sampleRate = 0
	d.channels = 0
	d.bitsPer = 0
	d.frameBytes = 0
}

// SampleRate reports the container's sample rate, or 0 before header parse.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Decode cuts all complete PCM frames from data and reports how many bytes it
// consumed. A short tail returns the frames cut so far plus ErrNeedMoreData
// with consumed covering only whole frames, so the caller keeps the remainder
// buffered at the front.
func (d *Decoder) Decode(data []byte) (frames [][]byte, consumed int, err error) {
	if !d.headerDone {
		n, err := d.parseHeader(data)
		if err != nil {
			return nil, 0, err
		}
		consumed = n
		data = data[n:]
	}

	for len(data) >= d.frameBytes {
		frame := make([]byte, d.frameBytes)
		copy(frame, data[:d.frameBytes])
		frames = append(frames, frame)
		data = data[d.frameBytes:]
		consumed += d.frameBytes
	}
	if len(data) > 0 {
		return frames, consumed, ErrNeedMoreData
	}
	return frames, consumed, nil
}

// parseHeader walks the RIFF chunk list up to and including the data chunk
// header. Chunk sizes in a live stream are unreliable (encoders write zero or
// a placeholder before the stream ends), so the data size field is ignored.
func (d *Decoder) parseHeader(data []byte) (int, error) {
	if len(data) < riffHeaderLen {
		return 0, ErrNeedMoreData
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return 0, ErrBadContainer
	}

	off := riffHeaderLen
	for {
		if len(data) < off+chunkHeadLen {
			return 0, ErrNeedMoreData
		}
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += chunkHeadLen

		switch id {
		case "fmt ":
			if len(data) < off+size {
				return 0, ErrNeedMoreData
			}
			if err := d.parseFmt(data[off : off+size]); err != nil {
				return 0, err
			}
			off += size + size%2
		case "data":
			if d.sampleRate == 0 {
				return 0, fmt.Errorf("%w: data chunk before fmt", ErrBadContainer)
			}
			d.frameBytes = d.frameBytesFor(d.frameDuration)
			d.headerDone = true
			return off, nil
		default:
			// LIST, fact and friends carry nothing we need.
			if len(data) < off+size {
				return 0, ErrNeedMoreData
			}
			off += size + size%2
		}
	}
}

func (d *Decoder) parseFmt(chunk []byte) error {
	if len(chunk) < 16 {
		return fmt.Errorf("%w: short fmt chunk", ErrBadContainer)
	}
	format := binary.LittleEndian.Uint16(chunk[0:2])
	if format != formatPCM {
		return fmt.Errorf("%w: unsupported format %d", ErrBadContainer, format)
	}
	d.channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
	d.sampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
	d.bitsPer = int(binary.LittleEndian.Uint16(chunk[14:16]))
	if d.channels <= 0 || d.sampleRate <= 0 {
		return fmt.Errorf("%w: invalid fmt chunk", ErrBadContainer)
	}
	if d.bitsPer != 16 {
		return fmt.Errorf("%w: unsupported bit depth %d", ErrBadContainer, d.bitsPer)
	}
	return nil
}

func (d *Decoder) frameBytesFor(dur time.Duration) int {
	blockAlign := d.channels * d.bitsPer / 8
	samples := int(int64(d.sampleRate) * int64(dur) / int64(time.Second))
	if samples < 1 {
		samples = 1
	}
	return samples * blockAlign
}
