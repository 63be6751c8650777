package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voicebridge service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// VoiceProvider selects the STT/TTS backend: auto|elevenlabs|polly|mock.
	VoiceProvider string

	// Audio ingest bounds. MaxBufferBytes models roughly 60 seconds of
	// containerized audio at the default client bitrate.
	MaxBufferBytes int
	FrameDuration  time.Duration

	// Generation budgets. InnerGenerationTimeout guards a silent provider
	// token stream; OuterGenerationTimeout is the hard cap for the whole
	// generation and must be strictly larger.
	InnerGenerationTimeout time.Duration
	OuterGenerationTimeout time.Duration

	ElevenLabsAPIKey          string
	ElevenLabsWSBaseURL       string
	ElevenLabsSTTModel        string
	ElevenLabsTTSModel        string
	ElevenLabsTTSOutputFormat string

	PollyRegion string
	PollyVoice  string
	PollyEngine string

	// BrainMode selects the generation adapter: auto|http|mock. Auto picks
	// http when BrainBaseURL is set and mock otherwise.
	BrainMode    string
	BrainBaseURL string

	DefaultVoiceID string

	// Durable transcript log. DatabaseURL selects postgres, RedisURL selects
	// redis; neither set means in-memory.
	DatabaseURL string
	RedisURL    string
	JournalTTL  time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                  envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:          envOrDefault("APP_METRICS_NAMESPACE", "voicebridge"),
		AllowAnyOrigin:            false,
		VoiceProvider:             envOrDefault("VOICE_PROVIDER", "auto"),
		MaxBufferBytes:            500_000,
		FrameDuration:             20 * time.Millisecond,
		InnerGenerationTimeout:    30 * time.Second,
		OuterGenerationTimeout:    45 * time.Second,
		ElevenLabsAPIKey:          envTrimmed("ELEVENLABS_API_KEY"),
		ElevenLabsWSBaseURL:       envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		ElevenLabsSTTModel:        envOrDefault("ELEVENLABS_STT_MODEL_ID", "scribe_v2_realtime"),
		ElevenLabsTTSModel:        envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsTTSOutputFormat: envOrDefault("ELEVENLABS_TTS_OUTPUT_FORMAT", "pcm_16000"),
		PollyRegion:               envOrDefault("POLLY_REGION", envOrDefault("AWS_REGION", "us-east-1")),
		PollyVoice:                envOrDefault("POLLY_VOICE_ID", "Joanna"),
		PollyEngine:               envOrDefault("POLLY_ENGINE", "neural"),
		BrainMode:                 envOrDefault("BRAIN_MODE", "auto"),
		BrainBaseURL:              envTrimmed("BRAIN_BASE_URL"),
		DefaultVoiceID:            envTrimmed("DEFAULT_VOICE_ID"),
		DatabaseURL:               envTrimmed("DATABASE_URL"),
		RedisURL:                  envTrimmed("REDIS_URL"),
		JournalTTL:                24 * time.Hour,
		ShutdownTimeout:           15 * time.Second,
		SessionInactivityTimeout:  2 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.InnerGenerationTimeout, err = durationFromEnv("GENERATION_INNER_TIMEOUT", cfg.InnerGenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.OuterGenerationTimeout, err = durationFromEnv("GENERATION_OUTER_TIMEOUT", cfg.OuterGenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameDuration, err = durationFromEnv("AUDIO_FRAME_DURATION", cfg.FrameDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.JournalTTL, err = durationFromEnv("JOURNAL_TTL", cfg.JournalTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBufferBytes, err = intFromEnv("AUDIO_MAX_BUFFER_BYTES", cfg.MaxBufferBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.MaxBufferBytes < 4096 {
		return Config{}, fmt.Errorf("AUDIO_MAX_BUFFER_BYTES must be at least 4096")
	}
	if cfg.FrameDuration <= 0 {
		return Config{}, fmt.Errorf("AUDIO_FRAME_DURATION must be positive")
	}
	if cfg.InnerGenerationTimeout <= 0 {
		return Config{}, fmt.Errorf("GENERATION_INNER_TIMEOUT must be positive")
	}
	if cfg.OuterGenerationTimeout <= cfg.InnerGenerationTimeout {
		return Config{}, fmt.Errorf("GENERATION_OUTER_TIMEOUT must be larger than GENERATION_INNER_TIMEOUT")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
