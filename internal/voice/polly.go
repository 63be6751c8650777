package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

const pollyChunkBytes = 8 * 1024

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type PollyConfig struct {
	Region  string
	VoiceID string
	Engine  string
}

// PollyProvider synthesizes speech through Amazon Polly. Polly has no
// incremental input API, so the stream buffers text until CloseInput and then
// chunks the response body onto the events channel; the final marker still
// follows the last audio chunk, which is all downstream ordering needs.
type PollyProvider struct {
	mu     sync.Mutex
	client synthClient
	cfg    PollyConfig
}

func NewPollyProvider(cfg PollyConfig) *PollyProvider {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Joanna"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	return &PollyProvider{cfg: cfg}
}

// NewPollyProviderWithClient injects a client; used in tests.
func NewPollyProviderWithClient(cfg PollyConfig, client synthClient) *PollyProvider {
	p := NewPollyProvider(cfg)
	p.client = client
	return p
}

func (p *PollyProvider) resolveClient(ctx context.Context) (synthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}

func (p *PollyProvider) StartStream(ctx context.Context, voiceID string, _ TTSSettings) (TTSStream, error) {
	client, err := p.resolveClient(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(voiceID) == "" {
		voiceID = p.cfg.VoiceID
	}
	return &pollyTTSStream{
		client:  client,
		voiceID: voiceID,
		engine:  p.cfg.Engine,
		done:    make(chan struct{}),
		events:  make(chan TTSEvent, 512),
	}, nil
}

type pollyTTSStream struct {
	client  synthClient
	voiceID string
	engine  string

	mu        sync.Mutex
	pending   strings.Builder
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
	events    chan TTSEvent
}

func (s *pollyTTSStream) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.pending.WriteString(text)
	return nil
}

func (s *pollyTTSStream) CloseInput(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	text := strings.TrimSpace(s.pending.String())
	s.mu.Unlock()

	go s.synthesize(ctx, text)
	return nil
}

func (s *pollyTTSStream) synthesize(ctx context.Context, text string) {
	defer close(s.events)
	if text == "" {
		s.emit(TTSEvent{Type: TTSEventFinal})
		return
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(s.engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	output, err := s.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(s.voiceID),
	})
	if err != nil {
		code, retryable := classifyPollyError(err)
		s.emit(TTSEvent{Type: TTSEventError, Code: code, Detail: err.Error(), Retryable: retryable})
		return
	}
	if output == nil || output.AudioStream == nil {
		s.emit(TTSEvent{Type: TTSEventError, Code: "empty_audio", Detail: "polly returned no audio stream", Retryable: true})
		return
	}
	defer output.AudioStream.Close()

	buf := make([]byte, pollyChunkBytes)
	for {
		n, err := output.AudioStream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.emit(TTSEvent{Type: TTSEventAudio, Audio: chunk})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			s.emit(TTSEvent{Type: TTSEventError, Code: "audio_stream_read", Detail: err.Error(), Retryable: true})
			return
		}
	}
	s.emit(TTSEvent{Type: TTSEventFinal})
}

// emit blocks until the consumer takes the event or the stream is closed.
// Audio chunks and the final marker must not be dropped under backpressure;
// the select on done keeps a slow consumer from wedging synthesize forever.
func (s *pollyTTSStream) emit(evt TTSEvent) {
	select {
	case s.events <- evt:
	case <-s.done:
	}
}

func (s *pollyTTSStream) Events() <-chan TTSEvent { return s.events }

func (s *pollyTTSStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func classifyPollyError(err error) (code string, retryable bool) {
	if errors.Is(err, context.Canceled) {
		return "cancelled", false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException":
			return "throttled", true
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "InvalidSampleRateException":
			return "invalid_request", false
		default:
			return "provider_error", true
		}
	}
	return "transport_error", true
}
