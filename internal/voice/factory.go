package voice

import (
	"fmt"
	"log"
	"strings"
)

// ProviderSelection names the backend pair to run: "auto" picks the best
// available from the credentials present.
type ProviderSelection struct {
	Mode string // auto|elevenlabs|polly|mock

	ElevenLabs ElevenLabsConfig
	Polly      PollyConfig
}

// SelectProviders resolves the STT and TTS backends for a deployment.
// ElevenLabs serves both directions; Polly is synthesis-only, so a Polly
// deployment pairs it with ElevenLabs STT when a key is present and the
// mock recognizer otherwise.
func SelectProviders(sel ProviderSelection) (STTProvider, TTSProvider, error) {
	mode := strings.ToLower(strings.TrimSpace(sel.Mode))
	if mode == "" {
		mode = "auto"
	}
	hasElevenLabs := strings.TrimSpace(sel.ElevenLabs.APIKey) != ""

	switch mode {
	case "mock":
		m := NewMockProvider()
		return m, m, nil
	case "elevenlabs":
		if !hasElevenLabs {
			return nil, nil, fmt.Errorf("voice provider elevenlabs requires ELEVENLABS_API_KEY")
		}
		p := NewElevenLabsProvider(sel.ElevenLabs)
		return p, p, nil
	case "polly":
		tts := NewPollyProvider(sel.Polly)
		if hasElevenLabs {
			return NewElevenLabsProvider(sel.ElevenLabs), tts, nil
		}
		log.Printf("voice: polly selected without ELEVENLABS_API_KEY, using mock recognizer")
		return NewMockProvider(), tts, nil
	case "auto":
		if hasElevenLabs {
			p := NewElevenLabsProvider(sel.ElevenLabs)
			return p, p, nil
		}
		log.Printf("voice: no provider credentials, falling back to mock")
		m := NewMockProvider()
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown voice provider %q", sel.Mode)
	}
}
