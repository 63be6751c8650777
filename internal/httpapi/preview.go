package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/voicebridge/voicebridge/internal/audio"
	"github.com/voicebridge/voicebridge/internal/voice"
)

type previewTTSRequest struct {
	VoiceID string `json:"voice_id"`
	Text    string `json:"text"`
}

// handlePreviewTTS synthesizes a short sample through the configured TTS
// backend and returns it as a single downloadable body.
func (s *Server) handlePreviewTTS(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "tts provider not configured")
		return
	}

	var req previewTTSRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoiceID
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = "Hi, this is a voice preview."
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	body, err := synthesizeOnce(ctx, s.tts, voiceID, text)
	if err != nil {
		respondError(w, http.StatusBadGateway, "tts_preview_failed", err.Error())
		return
	}

	out := body
	var contentType string
	switch {
	case isMP3Provider(s.cfg.VoiceProvider):
		contentType = "audio/mpeg"
	default:
		format := strings.TrimSpace(s.cfg.ElevenLabsTTSOutputFormat)
		contentType = mimeForTTSFormat(format)
		if sampleRate, ok := pcmSampleRate(format); ok {
			wav, err := audio.EncodeWAVPCM16LE(body, sampleRate)
			if err != nil {
				respondError(w, http.StatusBadGateway, "tts_preview_failed", err.Error())
				return
			}
			out = wav
			contentType = "audio/wav"
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// synthesizeOnce runs one stream to completion and concatenates the audio.
func synthesizeOnce(ctx context.Context, provider voice.TTSProvider, voiceID, text string) ([]byte, error) {
	stream, err := provider.StartStream(ctx, voiceID, voice.TTSSettings{})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.SendText(ctx, text); err != nil {
		return nil, err
	}
	if err := stream.CloseInput(ctx); err != nil {
		return nil, err
	}

	var out []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case evt, ok := <-stream.Events():
			if !ok {
				return nil, errors.New("tts stream closed before final marker")
			}
			switch evt.Type {
			case voice.TTSEventAudio:
				out = append(out, evt.Audio...)
			case voice.TTSEventFinal:
				return out, nil
			case voice.TTSEventError:
				return nil, fmt.Errorf("%s: %s", evt.Code, evt.Detail)
			}
		}
	}
}

// isMP3Provider reports whether the backend hands back mp3 bodies rather
// than raw PCM.
func isMP3Provider(provider string) bool {
	return strings.EqualFold(strings.TrimSpace(provider), "polly")
}

func mimeForTTSFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	switch {
	case strings.Contains(f, "wav"):
		return "audio/wav"
	case strings.Contains(f, "mp3"):
		return "audio/mpeg"
	case strings.Contains(f, "ogg"):
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

func pcmSampleRate(format string) (int, bool) {
	f := strings.ToLower(strings.TrimSpace(format))
	idx := strings.Index(f, "pcm_")
	if idx < 0 {
		return 0, false
	}
	rest := f[idx+len("pcm_"):]
	n := 0
	for n < len(rest) {
		c := rest[n]
		if c < '0' || c > '9' {
			break
		}
		n++
	}
	if n == 0 {
		return 16000, true
	}
	sr, err := strconv.Atoi(rest[:n])
	if err != nil || sr <= 0 {
		return 16000, true
	}
	return sr, true
}
